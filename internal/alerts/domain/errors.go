package alerts

import "errors"

var (
	// ErrNotFound indicates a missing alert record.
	ErrNotFound = errors.New("alert: not found")
	// ErrEmptyID indicates an alert without an id.
	ErrEmptyID = errors.New("alert: empty id")
	// ErrEmptyType indicates an alert without a type.
	ErrEmptyType = errors.New("alert: empty type")
	// ErrMissingSubject indicates an alert bound to neither box nor sample.
	ErrMissingSubject = errors.New("alert: missing box or sample id")
	// ErrUnknownSeverity indicates an unsupported severity value.
	ErrUnknownSeverity = errors.New("alert: unknown severity")
)
