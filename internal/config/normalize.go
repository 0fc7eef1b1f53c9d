package config

import "github.com/OpenTraceLab/OpenTraceRTT/internal/sink"

// Normalize fills unset fields with defaults. It must run before Validate.
// Without a log path the collector writes to the system log.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.MinPollRateMillis == 0 {
		cfg.MinPollRateMillis = DefaultMinPollRateMillis
	}
	if cfg.MaxPollRateMillis == 0 {
		cfg.MaxPollRateMillis = DefaultMaxPollRateMillis
	}
	if cfg.Sink == "" {
		if cfg.Log != "" {
			cfg.Sink = sink.KindFile
		} else {
			cfg.Sink = sink.KindSyslog
		}
	}
	if cfg.Compression == "" {
		cfg.Compression = sink.CompressionNone
	}
	if cfg.SyslogTag == "" {
		cfg.SyslogTag = DefaultSyslogTag
	}
	if cfg.SpeedKHz == 0 {
		cfg.SpeedKHz = DefaultSpeedKHz
	}
}
