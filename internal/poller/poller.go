// Package poller drains an RTT up channel with adaptive backoff: reads that
// return data keep the loop hot at the floor interval, consecutive empty
// reads double the sleep up to the ceiling.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ReadBufferSize is the size of the buffer handed to every channel read.
const ReadBufferSize = 64 * 1024

var (
	// ErrChannelRead wraps a failed channel read. Reads are not retried.
	ErrChannelRead = errors.New("failed to read from RTT channel")
	// ErrPipeline wraps a failure to forward or flush decoded output.
	ErrPipeline = errors.New("failed to write log output")
)

// Channel is a single-attempt, non-blocking read of pending bytes.
type Channel interface {
	Read(buf []byte) (int, error)
}

// Pipeline consumes raw buffers and is flushed when the channel goes idle.
type Pipeline interface {
	Forward(data []byte) error
	Flush() error
}

// Poller owns the channel for the lifetime of Run.
type Poller struct {
	channel  Channel
	pipeline Pipeline
	sleeper  Sleeper
	state    PollState
	logger   *slog.Logger
}

// New validates its collaborators. A nil sleeper uses the wall clock and a
// nil logger discards diagnostics.
func New(channel Channel, pipeline Pipeline, state PollState, sleeper Sleeper, logger *slog.Logger) (*Poller, error) {
	if channel == nil {
		return nil, fmt.Errorf("channel is nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is nil")
	}
	if _, err := NewPollState(state.Floor, state.Ceiling); err != nil {
		return nil, err
	}
	if state.Current < state.Floor || state.Current > state.Ceiling {
		state.Current = state.Floor
	}
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		channel:  channel,
		pipeline: pipeline,
		sleeper:  sleeper,
		state:    state,
		logger:   logger,
	}, nil
}

// Run polls until ctx is cancelled or a read or write fails. It returns
// ctx.Err() on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	buf := make([]byte, ReadBufferSize)
	state := p.state
	active := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := p.channel.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrChannelRead, err)
		}

		if n == 0 {
			if active {
				if err := p.pipeline.Flush(); err != nil {
					return fmt.Errorf("%w: flush: %w", ErrPipeline, err)
				}
				active = false
			}

			var sleep time.Duration
			sleep, state = state.Idle()
			if err := p.sleeper.Sleep(ctx, sleep); err != nil {
				return err
			}
			continue
		}

		if !active {
			p.logger.Debug("channel active", "idle_interval", state.Current)
		}
		active = true
		state = state.Active()
		if err := p.pipeline.Forward(buf[:n]); err != nil {
			return fmt.Errorf("%w: %w", ErrPipeline, err)
		}
	}
}
