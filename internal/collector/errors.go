package collector

import "errors"

// Failure classes. Every error returned by Run matches exactly one of them
// with errors.Is.
var (
	// ErrStartupConfig covers malformed configuration and sink setup. It is
	// reported before any probe is opened.
	ErrStartupConfig = errors.New("startup configuration error")
	// ErrConnection covers unknown chips and probe open, attach and core
	// failures.
	ErrConnection = errors.New("connection error")
	// ErrControlBlockAttach means no usable RTT control block or channel.
	ErrControlBlockAttach = errors.New("RTT attach error")
	// ErrRuntimeRead means a channel read failed after attaching.
	ErrRuntimeRead = errors.New("runtime read error")
	// ErrSinkWrite means decoded output could not be written.
	ErrSinkWrite = errors.New("log sink error")
)

// Error is a classified collector failure.
type Error struct {
	Class error
	Err   error
}

func (e *Error) Error() string { return e.Class.Error() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is matches the failure class.
func (e *Error) Is(target error) bool { return target == e.Class }

func classify(class, err error) error {
	return &Error{Class: class, Err: err}
}
