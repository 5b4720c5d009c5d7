// Package api defines wire-format types and converters shared by the HTTP API
// and the IPC layer. It translates journal and topology models into
// transport-friendly DTOs so the CLI and other consumers never depend on
// storage types.
//
// Topology values (channel strips, output stages) are passed through as-is:
// their JSON shape is already the public contract, including the omitted
// cross_fader field on basic strips. Timestamps use RFC3339 with milliseconds.
package api
