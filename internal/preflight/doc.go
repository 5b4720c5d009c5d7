// Package preflight provides readiness checks for the backend services and
// filesystem paths pmxfactory depends on.
//
// The daemon logs RunAll at startup so an operator sees an unreachable plugin
// host before the first assembly fails, and the CLI "pmxfactory status"
// command renders the same results. Checks never block startup.
package preflight
