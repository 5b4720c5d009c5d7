// Package logs reads the daemon's JSON lines log for the CLI.
//
// Tail returns the last N lines when called with a negative offset and the
// lines appended since a byte offset otherwise. Follow mode polls until new
// lines arrive or the wait expires, so the IPC layer can serve long-poll
// requests without holding a file open between calls.
package logs
