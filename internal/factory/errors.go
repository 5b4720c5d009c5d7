package factory

import (
	"errors"
	"fmt"
	"strings"

	"pmxfactory/internal/channelstrip"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/services"
	"pmxfactory/internal/topology"
)

var (
	// ErrCallerGone reports that the caller's context ended before a reply arrived.
	ErrCallerGone = errors.New("caller gone")
	// ErrStopped reports that the actor is not accepting requests.
	ErrStopped = errors.New("assembly actor stopped")
	// ErrIDSpaceExhausted reports that every channel strip id has been issued.
	ErrIDSpaceExhausted = errors.New("channel strip identifier space exhausted")
)

// AssemblyError is the failure reply for a request. Leg is set when an
// output stage failed while building one of its channel strips.
type AssemblyError struct {
	Kind journal.Kind
	Name string
	Leg  string
	Step channelstrip.Step
	Role topology.Role
	Err  error
}

func (e *AssemblyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "create %s %q: ", strings.ReplaceAll(string(e.Kind), "_", " "), e.Name)
	if e.Leg != "" {
		b.WriteString(e.Leg)
		b.WriteString(": ")
	}
	if e.Role != "" {
		b.WriteString(e.Role.Label())
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%s failed: %v", e.Step, e.Err)
	return b.String()
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// ErrorKind classifies the underlying backend failure (unavailable,
// protocol, timeout, ...).
func (e *AssemblyError) ErrorKind() string {
	return services.Kind(e.Err)
}

func newAssemblyError(kind journal.Kind, name, leg string, err error) *AssemblyError {
	out := &AssemblyError{Kind: kind, Name: name, Leg: leg, Err: err}
	var stepErr *channelstrip.StepError
	if errors.As(err, &stepErr) {
		out.Step = stepErr.Step
		out.Role = stepErr.Role
		out.Err = stepErr.Err
	}
	return out
}

func failureOf(err error) journal.Failure {
	var asmErr *AssemblyError
	if errors.As(err, &asmErr) {
		return journal.Failure{Step: string(asmErr.Step), Role: string(asmErr.Role), Message: asmErr.Error()}
	}
	return journal.Failure{Message: err.Error()}
}
