// Package ipc exposes the daemon to the local CLI over JSON-RPC on a Unix
// domain socket.
//
// The server registers a single "PMXFactory" service. Assembly failures are
// returned in the response body as api.ErrorResponse values rather than as
// RPC errors so the CLI can render the failing step, role, and leg.
package ipc
