package journal

import (
	"time"

	"pmxfactory/internal/topology"
)

// Status represents the lifecycle of an assembly request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssembling Status = "assembling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAbandoned  Status = "abandoned"
	StatusOrphaned   Status = "orphaned"
)

var allStatuses = []Status{
	StatusPending,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
	StatusAbandoned,
	StatusOrphaned,
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAbandoned, StatusOrphaned:
		return true
	default:
		return false
	}
}

// Kind identifies the request variant.
type Kind string

const (
	KindChannelStrip Kind = "channel_strip"
	KindOutputStage  Kind = "output_stage"
)

// InterruptedReason is the error message set on requests a stopped daemon left unfinished.
const InterruptedReason = "daemon stopped before the assembly finished"

// Assembly is one journaled request.
type Assembly struct {
	ID           int64                     `json:"id"`
	RequestID    string                    `json:"request_id"`
	Kind         Kind                      `json:"kind"`
	Name         string                    `json:"name"`
	StripKind    topology.ChannelStripKind `json:"strip_kind,omitempty"`
	Status       Status                    `json:"status"`
	ResultID     *int64                    `json:"result_id,omitempty"`
	FailedStep   string                    `json:"failed_step,omitempty"`
	FailedRole   string                    `json:"failed_role,omitempty"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// Failure describes why an assembly failed.
type Failure struct {
	Step    string
	Role    string
	Message string
}
