// Package pipelineerr classifies stage-worker errors into the taxonomy
// spec §7 defines, so the pipeline runtime can decide retry vs. terminal
// error vs. silent drop without each stage reimplementing the switch.
package pipelineerr

import "github.com/ironvale-labs/dtcforge/pkg/errors"

// Kind is the error taxonomy from spec §7.
type Kind int

const (
	// KindTransient: network timeout, 5xx, DB connection reset. Retried
	// locally per the stage's retry policy; marked error only once
	// exhausted.
	KindTransient Kind = iota
	// KindPermanent: HTTP 404, malformed upstream JSON after all three
	// parse fallbacks, unsupported MIME. Marks the document error; never
	// retried.
	KindPermanent
	// KindLogicalInvariant: embedding dim mismatch, DTC regex mismatch.
	// The offending element is dropped silently; the job is not failed.
	KindLogicalInvariant
	// KindPoison: payload is not a valid document ID, or the document was
	// deleted. Logged and discarded; never re-enqueued.
	KindPoison
	// KindFatal: pool exhaustion after pool recreation, signal-initiated
	// shutdown. The runtime marks the document error, as for
	// KindPermanent; the worker loop does not exit.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindLogicalInvariant:
		return "logical_invariant"
	case KindPoison:
		return "poison"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StageError pairs a Kind with the underlying CustomizedError.
type StageError struct {
	Kind Kind
	Err  *errors.CustomizedError
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func Transient(trace, message string, err error) *StageError {
	return &StageError{Kind: KindTransient, Err: errors.Wrap(err, trace, message)}
}

func Permanent(trace, message string, err error) *StageError {
	return &StageError{Kind: KindPermanent, Err: errors.Wrap(err, trace, message)}
}

func Poison(trace, message string, err error) *StageError {
	return &StageError{Kind: KindPoison, Err: errors.Wrap(err, trace, message)}
}

// LogicalInvariant marks an error where the offending element (one chunk,
// one extracted entity) should be dropped without failing the surrounding
// job. Stages normally handle this inline (log and continue) rather than
// returning it, but it's available for call sites that need the runtime's
// dedicated logging/metrics branch for this outcome.
func LogicalInvariant(trace, message string, err error) *StageError {
	return &StageError{Kind: KindLogicalInvariant, Err: errors.Wrap(err, trace, message)}
}

func Fatal(trace, message string, err error) *StageError {
	return &StageError{Kind: KindFatal, Err: errors.Wrap(err, trace, message)}
}

// Retryable reports whether the pipeline runtime should retry the
// triggering operation rather than advance straight to a terminal state.
func (e *StageError) Retryable() bool {
	return e.Kind == KindTransient
}

// Terminal reports whether the document should be marked `error` with
// this error's message (spec §4.4's FatalError branch). Logical-invariant
// and poison errors are NOT terminal — they are handled inline by the
// stage (drop the element, or discard the job) without failing the
// document.
func (e *StageError) Terminal() bool {
	return e.Kind == KindPermanent || e.Kind == KindFatal
}
