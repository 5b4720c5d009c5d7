// Package services defines shared utilities consumed by the backend clients
// and the assembly actor.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and assembly kinds
//     for logging and outbound request headers.
//   - Structured error markers plus the Wrap helper that classify backend
//     failures (unavailable, protocol violation, timeout, validation).
//   - PostJSON, the single-shot JSON request helper used by the plugin host,
//     graph, and registry clients in the subpackages.
package services
