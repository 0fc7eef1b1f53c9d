// Package sink persists decoded log lines. Lines are appended in the order
// received; existing content is never truncated.
package sink

import (
	"errors"
	"fmt"
	"strings"
)

// Sink is an append-only line destination.
type Sink interface {
	AppendLine(line string) error
	// Flush makes previously appended lines durable where the
	// destination needs it.
	Flush() error
	Close() error
}

// Kind selects a Sink implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSyslog Kind = "syslog"
)

// Valid reports whether k names a sink.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindSyslog
}

func (k Kind) String() string { return string(k) }

// Set implements pflag.Value.
func (k *Kind) Set(s string) error {
	v := Kind(strings.ToLower(s))
	if !v.Valid() {
		return fmt.Errorf("unknown sink %q (want file or syslog)", s)
	}
	*k = v
	return nil
}

// Type implements pflag.Value.
func (k *Kind) Type() string { return "sink" }

// Compression selects the stream format of a file sink.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Valid reports whether c names a known format.
func (c Compression) Valid() bool {
	switch c {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return true
	}
	return false
}

func (c Compression) String() string { return string(c) }

// Set implements pflag.Value.
func (c *Compression) Set(s string) error {
	v := Compression(strings.ToLower(s))
	if !v.Valid() {
		return fmt.Errorf("unknown compression %q (want none, zstd or lz4)", s)
	}
	*c = v
	return nil
}

// Type implements pflag.Value.
func (c *Compression) Type() string { return "compression" }

// ErrUnknownKind is returned by Open for an unrecognised Kind.
var ErrUnknownKind = errors.New("unknown sink kind")

// Options describe the sink to open.
type Options struct {
	Kind        Kind
	Path        string
	Compression Compression
	Tag         string
}

// Open creates the sink described by opts.
func Open(opts Options) (Sink, error) {
	switch opts.Kind {
	case KindFile:
		s, err := OpenFile(opts.Path, opts.Compression)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindSyslog:
		s, err := OpenSyslog(opts.Tag)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}
