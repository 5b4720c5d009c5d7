// Package daemon coordinates the long-running pmxfactory process.
//
// It wires configuration, the assembly journal, the assembly actor, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances from handing out the same channel strip identifiers.
// The daemon validates caller input before it reaches the actor and exposes
// journal views for the CLI and HTTP consumers.
//
// Keep orchestration logic here: assembly itself lives in internal/factory
// while the daemon focuses on startup, shutdown, and request intake.
package daemon
