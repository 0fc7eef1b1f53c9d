package poller

import (
	"errors"
	"fmt"
	"time"
)

// Default polling bounds.
const (
	DefaultFloor   = 10 * time.Millisecond
	DefaultCeiling = 3000 * time.Millisecond
)

// ErrInvalidBounds is returned for a floor that is not positive or exceeds
// the ceiling.
var ErrInvalidBounds = errors.New("invalid poll interval bounds")

// PollState is the adaptive backoff interval. Current always lies in
// [Floor, Ceiling].
type PollState struct {
	Current time.Duration
	Floor   time.Duration
	Ceiling time.Duration
}

// NewPollState returns a state starting at floor.
func NewPollState(floor, ceiling time.Duration) (PollState, error) {
	if floor <= 0 {
		return PollState{}, fmt.Errorf("%w: floor %v must be positive", ErrInvalidBounds, floor)
	}
	if floor > ceiling {
		return PollState{}, fmt.Errorf("%w: floor %v exceeds ceiling %v", ErrInvalidBounds, floor, ceiling)
	}
	return PollState{Current: floor, Floor: floor, Ceiling: ceiling}, nil
}

// Idle returns the interval to sleep for an empty read and the state for
// the next iteration, with the interval doubled up to the ceiling.
func (s PollState) Idle() (time.Duration, PollState) {
	sleep := s.Current
	next := s
	if s.Current > s.Ceiling/2 {
		next.Current = s.Ceiling
	} else {
		next.Current = s.Current * 2
	}
	return sleep, next
}

// Active resets the interval to the floor after a read returned data.
func (s PollState) Active() PollState {
	s.Current = s.Floor
	return s
}
