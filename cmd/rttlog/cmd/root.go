package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenTraceLab/OpenTraceRTT/internal/collector"
	"github.com/OpenTraceLab/OpenTraceRTT/internal/config"
	"github.com/OpenTraceLab/OpenTraceRTT/internal/sink"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global flags
	verbose bool

	elfPath           string
	connectUnderReset bool
	minPollMillis     int
	maxPollMillis     int
	sinkKind          sink.Kind
	compression       sink.Compression
	syslogTag         string
	speedKHz          int
	reassemble        bool
	channelName       string
)

// collectorOptions are appended to every collector the root command builds.
var collectorOptions []collector.Option

var rootCmd = &cobra.Command{
	Use:   "rttlog <chip> <probe> <log> | rttlog <config-file>",
	Short: "Stream SEGGER RTT output from a target into a log",
	Long: `rttlog attaches to a microcontroller through a CMSIS-DAP debug probe, finds the
SEGGER RTT control block in target RAM and appends everything the firmware writes
to up channel 0 to a log file or the system log.

The probe is selected as VID:PID[:serial] in hex. Without --elf the control block
is found by scanning the chip's RAM.

Examples:
  rttlog nRF52840_xxAA 2e8a:000c /var/log/sensor.log --elf build/app.elf
  rttlog RP2040 2e8a:000c:E6614C311B2E4C2A rtt.log.zst --compression zstd
  rttlog /etc/rttlog/bench.yaml                  # configuration file
  rttlog probes                                  # list attached probes`,
	Version:       "0.3.0",
	Args:          validateArgs,
	RunE:          runCollect,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printErrorChain(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	f := rootCmd.Flags()
	f.StringVar(&elfPath, "elf", "", "firmware ELF file used to locate the RTT control block")
	f.BoolVar(&connectUnderReset, "connect-under-reset", false, "hold the target in reset while connecting")
	f.IntVar(&minPollMillis, "min-poll", config.DefaultMinPollRateMillis, "minimum poll interval in milliseconds")
	f.IntVar(&maxPollMillis, "max-poll", config.DefaultMaxPollRateMillis, "maximum poll interval in milliseconds")
	f.Var(&sinkKind, "sink", "log destination: file or syslog")
	f.Var(&compression, "compression", "file sink compression: none, zstd or lz4")
	f.StringVar(&syslogTag, "syslog-tag", config.DefaultSyslogTag, "tag for system log entries")
	f.IntVarP(&speedKHz, "speed", "s", config.DefaultSpeedKHz, "SWD clock in kHz")
	f.BoolVar(&reassemble, "reassemble", false, "join lines split across reads")
	f.StringVar(&channelName, "channel-name", "", "require up channel 0 to carry this name")
}

func validateArgs(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 1, 3:
		return nil
	default:
		return fmt.Errorf("expected <chip> <probe> <log> or <config-file>, got %d argument(s)", len(args))
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	// Arguments are valid from here on; failures are not usage errors.
	cmd.SilenceUsage = true

	cfg, err := resolveConfig(cmd.Flags(), args)
	if err != nil {
		return &collector.Error{Class: collector.ErrStartupConfig, Err: err}
	}

	// Interrupts end the process at once; unflushed output may be lost.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		os.Exit(0)
	}()

	opts := append([]collector.Option{collector.WithLevel(logLevel())}, collectorOptions...)
	return collector.New(cfg, newLogger(cmd), opts...).Run(cmd.Context())
}

// resolveConfig builds the configuration from either front door. Flags
// given explicitly override values from a configuration file.
func resolveConfig(flags *pflag.FlagSet, args []string) (config.Config, error) {
	var cfg config.Config
	if len(args) == 1 {
		loaded, err := config.Load(args[0])
		if err != nil {
			return config.Config{}, err
		}
		cfg = *loaded
	} else {
		cfg.Chip, cfg.Probe, cfg.Log = args[0], args[1], args[2]
		cfg.Sink = sink.KindFile
	}

	overrides := map[string]func(){
		"elf":                 func() { cfg.Elf = elfPath },
		"connect-under-reset": func() { cfg.ConnectUnderReset = connectUnderReset },
		"min-poll":            func() { cfg.MinPollRateMillis = minPollMillis },
		"max-poll":            func() { cfg.MaxPollRateMillis = maxPollMillis },
		"sink":                func() { cfg.Sink = sinkKind },
		"compression":         func() { cfg.Compression = compression },
		"syslog-tag":          func() { cfg.SyslogTag = syslogTag },
		"speed":               func() { cfg.SpeedKHz = speedKHz },
		"reassemble":          func() { cfg.Reassemble = reassemble },
		"channel-name":        func() { cfg.ChannelName = channelName },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}

	config.Normalize(&cfg)
	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel()}))
}
