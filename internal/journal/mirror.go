package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"pmxfactory/internal/topology"
)

// RecordChannelStrip mirrors a registered strip. assemblyID may be zero when
// the strip was built as a leg of an output stage outside its own request.
func (s *Store) RecordChannelStrip(ctx context.Context, assemblyID int64, strip topology.ChannelStrip) error {
	plugins, err := json.Marshal(strip.Plugins)
	if err != nil {
		return fmt.Errorf("encode plugins: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO channel_strips (id, name, kind, plugins_json, assembly_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
             name = excluded.name, kind = excluded.kind,
             plugins_json = excluded.plugins_json, assembly_id = excluded.assembly_id`,
		int64(strip.ID), strip.Name, string(strip.Kind), string(plugins), nullableID(assemblyID), nowTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("record channel strip %d: %w", strip.ID, err)
	}
	return nil
}

// RecordOutputStage mirrors a registered output stage.
func (s *Store) RecordOutputStage(ctx context.Context, assemblyID int64, stage topology.OutputStage) error {
	_, err := s.exec(ctx,
		`INSERT INTO output_stages (id, name, left_channel_strip_id, right_channel_strip_id, cross_fader_plugin_id, assembly_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
             name = excluded.name,
             left_channel_strip_id = excluded.left_channel_strip_id,
             right_channel_strip_id = excluded.right_channel_strip_id,
             cross_fader_plugin_id = excluded.cross_fader_plugin_id,
             assembly_id = excluded.assembly_id`,
		int64(stage.ID), stage.Name,
		int64(stage.LeftChannelStripID), int64(stage.RightChannelStripID), int64(stage.CrossFaderPluginID),
		nullableID(assemblyID), nowTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("record output stage %d: %w", stage.ID, err)
	}
	return nil
}

// ListChannelStrips returns mirrored strips ordered by id.
func (s *Store) ListChannelStrips(ctx context.Context) ([]topology.ChannelStrip, error) {
	rows, err := s.query(ctx, `SELECT id, name, kind, plugins_json FROM channel_strips ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list channel strips: %w", err)
	}
	defer rows.Close()

	var strips []topology.ChannelStrip
	for rows.Next() {
		var (
			id      int64
			strip   topology.ChannelStrip
			kind    string
			plugins string
		)
		if err := rows.Scan(&id, &strip.Name, &kind, &plugins); err != nil {
			return nil, fmt.Errorf("scan channel strip: %w", err)
		}
		strip.ID = uint32(id)
		strip.Kind = topology.ChannelStripKind(kind)
		if err := json.Unmarshal([]byte(plugins), &strip.Plugins); err != nil {
			return nil, fmt.Errorf("decode plugins for strip %d: %w", id, err)
		}
		strips = append(strips, strip)
	}
	return strips, rows.Err()
}

// ListOutputStages returns mirrored output stages ordered by id.
func (s *Store) ListOutputStages(ctx context.Context) ([]topology.OutputStage, error) {
	rows, err := s.query(ctx,
		`SELECT id, name, left_channel_strip_id, right_channel_strip_id, cross_fader_plugin_id
         FROM output_stages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list output stages: %w", err)
	}
	defer rows.Close()

	var stages []topology.OutputStage
	for rows.Next() {
		var id, left, right, fader int64
		var stage topology.OutputStage
		if err := rows.Scan(&id, &stage.Name, &left, &right, &fader); err != nil {
			return nil, fmt.Errorf("scan output stage: %w", err)
		}
		stage.ID = uint32(id)
		stage.LeftChannelStripID = uint32(left)
		stage.RightChannelStripID = uint32(right)
		stage.CrossFaderPluginID = uint32(fader)
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// MaxStripIDs is one past the largest channel strip id. A counter at this
// value has no identifiers left.
const MaxStripIDs = uint64(math.MaxUint32) + 1

// SaveNextChannelStripID persists the next id the counter will hand out.
func (s *Store) SaveNextChannelStripID(ctx context.Context, next uint64) error {
	_, err := s.exec(ctx,
		`INSERT INTO strip_counter (singleton, next_id) VALUES (1, ?)
         ON CONFLICT (singleton) DO UPDATE SET next_id = excluded.next_id`,
		int64(next),
	)
	if err != nil {
		return fmt.Errorf("save strip counter: %w", err)
	}
	return nil
}

// NextChannelStripID returns the id a restarted counter should resume from:
// the persisted high-water mark or one past the largest mirrored strip,
// whichever is larger, capped at MaxStripIDs. An empty journal yields zero.
func (s *Store) NextChannelStripID(ctx context.Context) (uint64, error) {
	var saved, maxID int64
	if err := s.queryRow(ctx, `SELECT COALESCE(MAX(next_id), 0) FROM strip_counter`).Scan(&saved); err != nil {
		return 0, fmt.Errorf("read strip counter: %w", err)
	}
	if err := s.queryRow(ctx, `SELECT COALESCE(MAX(id) + 1, 0) FROM channel_strips`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read strip high-water mark: %w", err)
	}
	return min(uint64(max(saved, maxID, 0)), MaxStripIDs), nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
