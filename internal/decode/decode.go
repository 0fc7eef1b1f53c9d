// Package decode turns raw RTT buffers into log lines.
package decode

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MaxPending bounds the unterminated tail kept in reassemble mode. A longer
// tail is emitted as a line of its own.
const MaxPending = 64 * 1024

// LineWriter receives decoded lines in arrival order.
type LineWriter interface {
	AppendLine(line string) error
	Flush() error
}

// Options control how buffers are joined.
type Options struct {
	// Reassemble keeps an unterminated trailing line, including a
	// multi-byte sequence cut by the read boundary, until the next buffer
	// completes it or the channel goes idle.
	Reassemble bool
}

// Decoder decodes buffers and forwards their lines to a LineWriter.
type Decoder struct {
	out     LineWriter
	logger  *slog.Logger
	opts    Options
	pending []byte
}

// New returns a decoder writing to out. A nil logger discards warnings.
func New(out LineWriter, logger *slog.Logger, opts Options) *Decoder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Decoder{out: out, logger: logger, opts: opts}
}

// Text decodes b as UTF-8. Invalid sequences are replaced with U+FFFD and
// valid reports whether any replacement happened.
func Text(b []byte) (text string, valid bool) {
	if utf8.Valid(b) {
		return string(b), true
	}
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		// The UTF-8 decoder replaces rather than fails; keep a usable result
		// regardless.
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), false
	}
	return string(out), false
}

// Lines splits text on '\n', dropping a trailing '\r' from each line. A
// final terminator does not produce an empty line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Forward decodes one read buffer and writes its lines.
func (d *Decoder) Forward(data []byte) error {
	if !d.opts.Reassemble {
		return d.emit(data)
	}

	d.pending = append(d.pending, data...)
	cut := bytes.LastIndexByte(d.pending, '\n')
	if cut < 0 {
		if len(d.pending) <= MaxPending {
			return nil
		}
		cut = len(d.pending) - 1
	}

	complete := d.pending[:cut+1]
	rest := d.pending[cut+1:]
	if err := d.emit(complete); err != nil {
		return err
	}
	d.pending = append(d.pending[:0:0], rest...)
	return nil
}

// Flush emits any pending partial line and flushes the writer.
func (d *Decoder) Flush() error {
	if len(d.pending) > 0 {
		pending := d.pending
		d.pending = nil
		if err := d.emit(pending); err != nil {
			return err
		}
	}
	return d.out.Flush()
}

func (d *Decoder) emit(b []byte) error {
	text, valid := Text(b)
	if !valid {
		d.logger.Warn("invalid UTF-8 in RTT data, substituted replacement characters", "bytes", len(b))
	}
	for _, line := range Lines(text) {
		if err := d.out.AppendLine(line); err != nil {
			return fmt.Errorf("append line: %w", err)
		}
	}
	return nil
}
