package api

import (
	"context"

	"pmxfactory/internal/journal"
	"pmxfactory/internal/topology"
)

// JournalReader abstracts the journal queries the API exposes.
type JournalReader interface {
	ListAssemblies(ctx context.Context, statuses ...journal.Status) ([]*journal.Assembly, error)
	Stats(ctx context.Context) (map[journal.Status]int, error)
	GetAssembly(ctx context.Context, id int64) (*journal.Assembly, error)
	ListChannelStrips(ctx context.Context) ([]topology.ChannelStrip, error)
	ListOutputStages(ctx context.Context) ([]topology.OutputStage, error)
}

// JournalService exposes read-only journal operations returning API DTOs.
type JournalService struct {
	store JournalReader
}

// NewJournalService constructs a JournalService around the provided reader.
func NewJournalService(store JournalReader) *JournalService {
	if store == nil {
		return nil
	}
	return &JournalService{store: store}
}

// List returns journal entries filtered by status.
func (s *JournalService) List(ctx context.Context, statuses ...journal.Status) ([]Assembly, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.ListAssemblies(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromAssemblies(entries), nil
}

// Stats returns counts keyed by status string.
func (s *JournalService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return MergeAssemblyStats(nil), nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeAssemblyStats(stats), nil
}

// Describe fetches a single journal entry, or nil when absent.
func (s *JournalService) Describe(ctx context.Context, id int64) (*Assembly, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entry, err := s.store.GetAssembly(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	dto := FromAssembly(entry)
	return &dto, nil
}

// Strips returns mirrored channel strips.
func (s *JournalService) Strips(ctx context.Context) ([]topology.ChannelStrip, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return s.store.ListChannelStrips(ctx)
}

// Stages returns mirrored output stages.
func (s *JournalService) Stages(ctx context.Context) ([]topology.OutputStage, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return s.store.ListOutputStages(ctx)
}

// ParseStatuses keeps the recognised status names and drops the rest.
func ParseStatuses(values []string) []journal.Status {
	statuses := make([]journal.Status, 0, len(values))
	for _, value := range values {
		if status, ok := journal.ParseStatus(value); ok {
			statuses = append(statuses, status)
		}
	}
	return statuses
}
