// Package factory hosts the assembly actor: a single goroutine that owns the
// channel strip identifier counter and serializes every topology-mutating
// request (channel strips and output stages) against the plugin host, the
// graph backend, and the registry.
//
// Callers submit through Factory.CreateChannelStrip and
// Factory.CreateOutputStage. Each request carries a private reply slot and
// receives exactly one reply. A request whose caller has left before the
// actor picks it up is skipped and journaled as abandoned; once started, an
// assembly always runs to completion and a departed caller leaves an orphaned
// journal record behind.
package factory
