// Package journal persists the history of assembly requests and mirrors the
// strips and stages the factory has registered.
//
// The Store runs on SQLite by default and on Postgres (through the pgx
// database/sql driver) when several daemons share one journal. Every request
// moves through pending -> assembling -> completed | failed; requests whose
// caller went away are recorded as abandoned (never started) or orphaned
// (completed with nobody waiting). The store also persists the channel strip
// id high-water mark so a restarted daemon never reuses an id.
//
// Schema changes bump schemaVersion in schema.go; operators clear the journal
// to adopt a new schema.
package journal
