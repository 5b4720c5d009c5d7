package api

import "pmxfactory/internal/topology"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CreateChannelStripRequest asks for a new channel strip. Kind defaults to
// cross_faded when empty.
type CreateChannelStripRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// CreateOutputStageRequest asks for a new output stage.
type CreateOutputStageRequest struct {
	Name string `json:"name"`
}

// ChannelStripResponse wraps a registered channel strip.
type ChannelStripResponse struct {
	Strip topology.ChannelStrip `json:"strip"`
}

// OutputStageResponse wraps a registered output stage.
type OutputStageResponse struct {
	Stage topology.OutputStage `json:"stage"`
}

// ChannelStripListResponse lists mirrored channel strips.
type ChannelStripListResponse struct {
	Strips []topology.ChannelStrip `json:"strips"`
}

// OutputStageListResponse lists mirrored output stages.
type OutputStageListResponse struct {
	Stages []topology.OutputStage `json:"stages"`
}

// Assembly describes a journaled request.
type Assembly struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	StripKind  string `json:"strip_kind,omitempty"`
	Status     string `json:"status"`
	ResultID   *int64 `json:"result_id,omitempty"`
	FailedStep string `json:"failed_step,omitempty"`
	FailedRole string `json:"failed_role,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// AssemblyListResponse wraps a collection of journal entries.
type AssemblyListResponse struct {
	Assemblies []Assembly `json:"assemblies"`
}

// AssemblyResponse wraps a single journal entry.
type AssemblyResponse struct {
	Assembly Assembly `json:"assembly"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// FactoryStatus mirrors the assembly actor snapshot.
type FactoryStatus struct {
	Running            bool   `json:"running"`
	MailboxDepth       int    `json:"mailbox_depth"`
	MailboxCapacity    int    `json:"mailbox_capacity"`
	NextChannelStripID uint64 `json:"next_channel_strip_id"`
	Processed          uint64 `json:"processed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LockFilePath  string         `json:"lock_file_path"`
	SocketPath    string         `json:"socket_path"`
	JournalDriver string         `json:"journal_driver"`
	JournalSource string         `json:"journal_source"`
	Factory       FactoryStatus  `json:"factory"`
	AssemblyStats map[string]int `json:"assembly_stats"`
	Checks        []CheckResult  `json:"checks"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Step  string `json:"step,omitempty"`
	Role  string `json:"role,omitempty"`
	Leg   string `json:"leg,omitempty"`
}
