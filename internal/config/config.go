// Package config holds the resolved collector configuration. Both front
// doors, positional arguments and a configuration file, produce a Config
// that is normalized and validated before any hardware is touched.
package config

import (
	"time"

	"github.com/OpenTraceLab/OpenTraceRTT/internal/sink"
	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
)

// Defaults applied by Normalize.
const (
	DefaultMinPollRateMillis = 10
	DefaultMaxPollRateMillis = 3000
	DefaultSyslogTag         = "rttlog"
	DefaultSpeedKHz          = 1000
)

type Config struct {
	// Chip is the target name, e.g. "nRF52840_xxAA".
	Chip string `yaml:"chip" json:"chip"`
	// Probe selects the debug probe as VID:PID[:serial].
	Probe string `yaml:"probe" json:"probe"`
	// Log is the output file for the file sink.
	Log string `yaml:"log" json:"log"`
	// Elf optionally points at the firmware image for the control block
	// address.
	Elf               string `yaml:"elf" json:"elf"`
	ConnectUnderReset bool   `yaml:"connect_under_reset" json:"connect_under_reset"`

	MinPollRateMillis int `yaml:"min_poll_rate_millis" json:"min_poll_rate_millis"`
	MaxPollRateMillis int `yaml:"max_poll_rate_millis" json:"max_poll_rate_millis"`

	Sink        sink.Kind        `yaml:"sink" json:"sink"`
	Compression sink.Compression `yaml:"compression" json:"compression"`
	SyslogTag   string           `yaml:"syslog_tag" json:"syslog_tag"`

	// Reassemble joins lines and multi-byte sequences split across reads.
	Reassemble bool `yaml:"reassemble" json:"reassemble"`
	SpeedKHz   int  `yaml:"speed_khz" json:"speed_khz"`
	// ChannelName, when set, must match the name of up channel 0.
	ChannelName string `yaml:"channel_name" json:"channel_name"`
}

// Floor returns the minimum poll interval.
func (c *Config) Floor() time.Duration {
	return time.Duration(c.MinPollRateMillis) * time.Millisecond
}

// Ceiling returns the maximum poll interval.
func (c *Config) Ceiling() time.Duration {
	return time.Duration(c.MaxPollRateMillis) * time.Millisecond
}

// Selector parses the probe selector.
func (c *Config) Selector() (probe.Selector, error) {
	return probe.ParseSelector(c.Probe)
}

// SinkOptions returns the options for opening the configured sink.
func (c *Config) SinkOptions() sink.Options {
	return sink.Options{
		Kind:        c.Sink,
		Path:        c.Log,
		Compression: c.Compression,
		Tag:         c.SyslogTag,
	}
}
