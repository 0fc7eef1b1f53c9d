package config

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRTT/internal/sink"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks a normalized configuration. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty", ErrInvalid)
	}

	if cfg.Chip == "" {
		return fmt.Errorf("%w: chip is required", ErrInvalid)
	}
	if cfg.Probe == "" {
		return fmt.Errorf("%w: probe is required", ErrInvalid)
	}
	if _, err := cfg.Selector(); err != nil {
		return fmt.Errorf("%w: probe: %w", ErrInvalid, err)
	}

	if cfg.MinPollRateMillis <= 0 {
		return fmt.Errorf("%w: min_poll_rate_millis must be positive, got %d", ErrInvalid, cfg.MinPollRateMillis)
	}
	if cfg.MaxPollRateMillis <= 0 {
		return fmt.Errorf("%w: max_poll_rate_millis must be positive, got %d", ErrInvalid, cfg.MaxPollRateMillis)
	}
	if cfg.MinPollRateMillis > cfg.MaxPollRateMillis {
		return fmt.Errorf("%w: min_poll_rate_millis (%d) exceeds max_poll_rate_millis (%d)",
			ErrInvalid, cfg.MinPollRateMillis, cfg.MaxPollRateMillis)
	}

	if !cfg.Sink.Valid() {
		return fmt.Errorf("%w: unknown sink %q", ErrInvalid, cfg.Sink)
	}
	if !cfg.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression %q", ErrInvalid, cfg.Compression)
	}
	if cfg.Sink == sink.KindFile && cfg.Log == "" {
		return fmt.Errorf("%w: file sink needs a log path", ErrInvalid)
	}
	if cfg.Sink == sink.KindSyslog && cfg.Compression != sink.CompressionNone {
		return fmt.Errorf("%w: compression %q applies to the file sink only", ErrInvalid, cfg.Compression)
	}

	if cfg.SpeedKHz < 0 {
		return fmt.Errorf("%w: speed_khz must be positive, got %d", ErrInvalid, cfg.SpeedKHz)
	}
	return nil
}
