package api

import (
	"errors"
	"net/http"

	"pmxfactory/internal/factory"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/preflight"
	"pmxfactory/internal/services"
)

// FromAssembly converts a journal entry into its transport form.
func FromAssembly(entry *journal.Assembly) Assembly {
	if entry == nil {
		return Assembly{}
	}
	dto := Assembly{
		ID:         entry.ID,
		RequestID:  entry.RequestID,
		Kind:       string(entry.Kind),
		Name:       entry.Name,
		StripKind:  string(entry.StripKind),
		Status:     string(entry.Status),
		FailedStep: entry.FailedStep,
		FailedRole: entry.FailedRole,
		Error:      entry.ErrorMessage,
	}
	if entry.ResultID != nil {
		id := *entry.ResultID
		dto.ResultID = &id
	}
	if !entry.CreatedAt.IsZero() {
		dto.CreatedAt = entry.CreatedAt.Format(dateTimeFormat)
	}
	if !entry.UpdatedAt.IsZero() {
		dto.UpdatedAt = entry.UpdatedAt.Format(dateTimeFormat)
	}
	return dto
}

// FromAssemblies converts a slice of journal entries, skipping nils.
func FromAssemblies(entries []*journal.Assembly) []Assembly {
	out := make([]Assembly, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, FromAssembly(entry))
	}
	return out
}

// MergeAssemblyStats reports a count for every known status, zero-filled.
func MergeAssemblyStats(stats map[journal.Status]int) map[string]int {
	out := make(map[string]int, len(journal.AllStatuses()))
	for _, status := range journal.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromSnapshot converts the actor snapshot.
func FromSnapshot(s factory.Snapshot) FactoryStatus {
	return FactoryStatus(s)
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// ErrorFrom maps an operation error to an HTTP status and response body.
func ErrorFrom(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}

	var asmErr *factory.AssemblyError
	switch {
	case errors.As(err, &asmErr):
		body.Kind = asmErr.ErrorKind()
		body.Step = string(asmErr.Step)
		body.Role = string(asmErr.Role)
		body.Leg = asmErr.Leg
		if body.Kind == "timeout" {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	case errors.Is(err, services.ErrValidation):
		body.Kind = "validation"
		return http.StatusBadRequest, body
	case errors.Is(err, factory.ErrStopped):
		body.Kind = "unavailable"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, factory.ErrCallerGone):
		body.Kind = "caller_gone"
		return http.StatusRequestTimeout, body
	default:
		return http.StatusInternalServerError, body
	}
}
