package ipc

import (
	"pmxfactory/internal/api"
	"pmxfactory/internal/topology"
)

// StatusRequest fetches daemon status.
type StatusRequest struct {
	WithChecks bool `json:"with_checks"`
}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse struct {
	api.DaemonStatus
}

// ShutdownRequest asks the daemon process to stop.
type ShutdownRequest struct{}

// ShutdownResponse reports whether the stop was accepted.
type ShutdownResponse struct {
	Stopped bool `json:"stopped"`
}

// CreateChannelStripRequest submits a channel strip assembly.
type CreateChannelStripRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
}

// CreateChannelStripResponse carries the strip or the failure.
type CreateChannelStripResponse struct {
	Strip *topology.ChannelStrip `json:"strip,omitempty"`
	Error *api.ErrorResponse     `json:"error,omitempty"`
}

// CreateOutputStageRequest submits an output stage assembly.
type CreateOutputStageRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name"`
}

// CreateOutputStageResponse carries the stage or the failure.
type CreateOutputStageResponse struct {
	Stage *topology.OutputStage `json:"stage,omitempty"`
	Error *api.ErrorResponse    `json:"error,omitempty"`
}

// ChannelStripListRequest lists mirrored channel strips.
type ChannelStripListRequest struct{}

// OutputStageListRequest lists mirrored output stages.
type OutputStageListRequest struct{}

// AssemblyListRequest filters the journal by status.
type AssemblyListRequest struct {
	Statuses []string `json:"statuses"`
}

// AssemblyDescribeRequest fetches one journal entry.
type AssemblyDescribeRequest struct {
	ID int64 `json:"id"`
}

// LogTailRequest reads the daemon log.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
