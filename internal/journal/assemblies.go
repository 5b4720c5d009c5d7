package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pmxfactory/internal/topology"
)

const assemblyColumns = "id, request_id, kind, name, strip_kind, status, result_id, failed_step, failed_role, error_message, created_at, updated_at"

// Begin journals a new request in the pending state.
func (s *Store) Begin(ctx context.Context, requestID string, kind Kind, name string, stripKind topology.ChannelStripKind) (*Assembly, error) {
	ts := nowTimestamp()
	var id int64
	err := retryOnBusy(ctx, func() error {
		return s.queryRow(ctx,
			`INSERT INTO assemblies (request_id, kind, name, strip_kind, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			requestID, kind, name, nullableString(string(stripKind)), StatusPending, ts, ts,
		).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("insert assembly: %w", err)
	}
	return s.GetAssembly(ctx, id)
}

// MarkAssembling records that the actor started working on the request.
func (s *Store) MarkAssembling(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusAssembling, nil, Failure{})
}

// Complete records a successful assembly and the id of what it produced.
func (s *Store) Complete(ctx context.Context, id int64, resultID uint32) error {
	rid := int64(resultID)
	return s.transition(ctx, id, StatusCompleted, &rid, Failure{})
}

// Orphan records a successful assembly whose caller was gone when the reply was ready.
func (s *Store) Orphan(ctx context.Context, id int64, resultID uint32) error {
	rid := int64(resultID)
	return s.transition(ctx, id, StatusOrphaned, &rid, Failure{})
}

// Fail records a failed assembly.
func (s *Store) Fail(ctx context.Context, id int64, failure Failure) error {
	return s.transition(ctx, id, StatusFailed, nil, failure)
}

// Abandon records a request skipped because its caller left before it started.
func (s *Store) Abandon(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusAbandoned, nil, Failure{Message: "caller gone before assembly started"})
}

func (s *Store) transition(ctx context.Context, id int64, status Status, resultID *int64, failure Failure) error {
	set := `status = ?, failed_step = ?, failed_role = ?, error_message = ?, updated_at = ?`
	args := []any{
		status,
		nullableString(failure.Step), nullableString(failure.Role), nullableString(failure.Message),
		nowTimestamp(),
	}
	if resultID != nil {
		set += `, result_id = ?`
		args = append(args, *resultID)
	}
	args = append(args, id)

	res, err := s.exec(ctx, `UPDATE assemblies SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update assembly %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update assembly %d: not found", id)
	}
	return nil
}

// GetAssembly fetches a request by journal id. It returns nil when absent.
func (s *Store) GetAssembly(ctx context.Context, id int64) (*Assembly, error) {
	row := s.queryRow(ctx, `SELECT `+assemblyColumns+` FROM assemblies WHERE id = ?`, id)
	assembly, err := scanAssembly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assembly: %w", err)
	}
	return assembly, nil
}

// ListAssemblies returns journaled requests, newest first, optionally
// filtered by status.
func (s *Store) ListAssemblies(ctx context.Context, statuses ...Status) ([]*Assembly, error) {
	query := `SELECT ` + assemblyColumns + ` FROM assemblies`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assemblies: %w", err)
	}
	defer rows.Close()

	var out []*Assembly
	for rows.Next() {
		assembly, err := scanAssembly(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assembly: %w", err)
		}
		out = append(out, assembly)
	}
	return out, rows.Err()
}

// Stats counts requests per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(1) FROM assemblies GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("assembly stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// ResetInterrupted fails every request a previous daemon left pending or
// assembling. It returns the number of rows touched.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE assemblies SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, InterruptedReason, nowTimestamp(), StatusPending, StatusAssembling,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted assemblies: %w", err)
	}
	return res.RowsAffected()
}

func scanAssembly(scanner interface{ Scan(dest ...any) error }) (*Assembly, error) {
	var (
		a          Assembly
		kind       string
		stripKind  sql.NullString
		status     string
		resultID   sql.NullInt64
		failedStep sql.NullString
		failedRole sql.NullString
		errMessage sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&a.ID, &a.RequestID, &kind, &a.Name, &stripKind, &status, &resultID,
		&failedStep, &failedRole, &errMessage, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	a.StripKind = topology.ChannelStripKind(stripKind.String)
	a.Status = Status(status)
	if resultID.Valid {
		v := resultID.Int64
		a.ResultID = &v
	}
	a.FailedStep = failedStep.String
	a.FailedRole = failedRole.String
	a.ErrorMessage = errMessage.String
	a.CreatedAt = parseTimestamp(createdRaw)
	a.UpdatedAt = parseTimestamp(updatedRaw)
	return &a, nil
}
