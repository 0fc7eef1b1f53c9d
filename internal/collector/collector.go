// Package collector wires the RTT pipeline together: it resolves the
// configuration, opens the sink and the probe, attaches to up channel 0 and
// runs the poller until cancellation or a fatal error.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceRTT/internal/config"
	"github.com/OpenTraceLab/OpenTraceRTT/internal/decode"
	"github.com/OpenTraceLab/OpenTraceRTT/internal/poller"
	"github.com/OpenTraceLab/OpenTraceRTT/internal/sink"
	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceRTT/pkg/rtt"
)

// Opener opens the probe matching a selector.
type Opener func(sel probe.Selector) (probe.Probe, error)

// SinkOpener creates the configured log sink.
type SinkOpener func(opts sink.Options) (sink.Sink, error)

// handlerProvider is implemented by sinks that also take diagnostics.
type handlerProvider interface {
	Handler(level slog.Leveler) slog.Handler
}

// Collector runs one collection session.
type Collector struct {
	cfg      config.Config
	logger   *slog.Logger
	open     Opener
	openSink SinkOpener
	sleeper  poller.Sleeper
	level    slog.Leveler
}

// Option customises a Collector.
type Option func(*Collector)

// WithOpener replaces probe.Open.
func WithOpener(open Opener) Option {
	return func(c *Collector) { c.open = open }
}

// WithSinkOpener replaces sink.Open.
func WithSinkOpener(open SinkOpener) Option {
	return func(c *Collector) { c.openSink = open }
}

// WithSleeper replaces the wall-clock sleeper of the poll loop.
func WithSleeper(s poller.Sleeper) Option {
	return func(c *Collector) { c.sleeper = s }
}

// WithLevel sets the minimum level of diagnostics routed to a sink that
// takes them. The default is slog.LevelInfo.
func WithLevel(level slog.Leveler) Option {
	return func(c *Collector) { c.level = level }
}

// New returns a collector for cfg. The configuration is normalized and
// validated by Run.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{
		cfg:      cfg,
		logger:   logger,
		open:     probe.Open,
		openSink: sink.Open,
		sleeper:  poller.RealSleeper{},
		level:    slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run collects until ctx is cancelled, which returns nil, or a fatal error
// occurs. Fatal errors are *Error values. They are also logged when
// diagnostics go to the sink, since the caller only sees stderr.
func (c *Collector) Run(ctx context.Context) error {
	cfg := c.cfg
	config.Normalize(&cfg)
	if err := config.Validate(&cfg); err != nil {
		return classify(ErrStartupConfig, err)
	}
	state, err := poller.NewPollState(cfg.Floor(), cfg.Ceiling())
	if err != nil {
		return classify(ErrStartupConfig, err)
	}
	sel, err := cfg.Selector()
	if err != nil {
		return classify(ErrStartupConfig, err)
	}

	out, err := c.openSink(cfg.SinkOptions())
	if err != nil {
		return classify(ErrStartupConfig, fmt.Errorf("failed to open %s sink: %w", cfg.Sink, err))
	}
	defer out.Close()

	logger := c.logger
	hp, routed := out.(handlerProvider)
	if routed {
		logger = slog.New(hp.Handler(c.level))
	}

	err = c.collect(ctx, &cfg, sel, state, out, logger)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if routed {
		logger.Error("collector stopped", "err", err)
	}
	return err
}

func (c *Collector) collect(ctx context.Context, cfg *config.Config, sel probe.Selector, state poller.PollState, out sink.Sink, logger *slog.Logger) error {
	target, err := probe.LookupTarget(cfg.Chip)
	if err != nil {
		return classify(ErrConnection, err)
	}

	hint := rtt.Locate(cfg.Elf, logger)

	p, err := c.open(sel)
	if err != nil {
		return classify(ErrConnection, fmt.Errorf("failed to open probe %s: %w", sel, err))
	}
	defer p.Close()

	info, err := p.Info()
	if err != nil {
		return classify(ErrConnection, fmt.Errorf("failed to query probe %s: %w", sel, err))
	}

	sess, err := p.Attach(target, probe.AttachOptions{
		UnderReset: cfg.ConnectUnderReset,
		SpeedHz:    cfg.SpeedKHz * 1000,
	})
	if err != nil {
		return classify(ErrConnection, fmt.Errorf("failed to attach to %s: %w", target.Name, err))
	}
	defer sess.Close()
	if id, ok := sess.(interface{ DPIDR() probe.DPIDR }); ok {
		logger.Debug("debug port identified", "dpidr", id.DPIDR().String())
	}

	core, err := sess.Core(0)
	if err != nil {
		return classify(ErrConnection, fmt.Errorf("failed to get core 0: %w", err))
	}

	cb, err := rtt.Attach(core, target.RAM(), hint)
	if err != nil {
		return classify(ErrControlBlockAttach, fmt.Errorf("failed to attach to RTT: %w", err))
	}
	ch, err := cb.UpChannel(core, 0)
	if err != nil {
		return classify(ErrControlBlockAttach, err)
	}
	if cfg.ChannelName != "" && ch.Name() != cfg.ChannelName {
		return classify(ErrControlBlockAttach,
			fmt.Errorf("up channel 0 is named %q, expected %q", ch.Name(), cfg.ChannelName))
	}

	logger.Info("attached to RTT",
		"chip", target.Name,
		"probe", info.Name,
		"vendor", info.Vendor,
		"model", info.Model,
		"serial", info.SerialNumber,
		"firmware", info.Firmware,
		"control_block", fmt.Sprintf("0x%08X", cb.Address),
		"hint", hint.String(),
		"channel", ch.Name(),
		"buffer_size", ch.BufferSize(),
	)

	dec := decode.New(out, logger, decode.Options{Reassemble: cfg.Reassemble})
	pl, err := poller.New(boundChannel{ch: ch, core: core}, dec, state, c.sleeper, logger)
	if err != nil {
		return classify(ErrStartupConfig, err)
	}

	err = pl.Run(ctx)
	switch {
	case errors.Is(err, poller.ErrChannelRead):
		return classify(ErrRuntimeRead, err)
	case errors.Is(err, poller.ErrPipeline):
		return classify(ErrSinkWrite, err)
	}
	return err
}

// boundChannel reads an up channel through the core it was attached on.
type boundChannel struct {
	ch   *rtt.UpChannel
	core probe.Core
}

func (b boundChannel) Read(buf []byte) (int, error) {
	return b.ch.Read(b.core, buf)
}
