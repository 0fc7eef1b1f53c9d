package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// streamEncoder is the part of the zstd and lz4 writers the file sink uses.
type streamEncoder interface {
	io.WriteCloser
	Flush() error
}

// FileSink appends lines to a file, optionally through a streaming
// compressor. Every open starts a new compressed frame, so a file written
// by several runs is a concatenation of frames.
type FileSink struct {
	file *os.File
	buf  *bufio.Writer
	enc  streamEncoder
	w    io.Writer
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string, c Compression) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if c == "" {
		c = CompressionNone
	}
	if !c.Valid() {
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	s := &FileSink{file: f, buf: bufio.NewWriter(f)}
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(s.buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		s.enc = enc
	case CompressionLZ4:
		s.enc = lz4.NewWriter(s.buf)
	}

	s.w = s.buf
	if s.enc != nil {
		s.w = s.enc
	}
	return s, nil
}

// AppendLine writes line followed by a newline.
func (s *FileSink) AppendLine(line string) error {
	if _, err := io.WriteString(s.w, line); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// Flush pushes buffered lines through the compressor and to stable
// storage.
func (s *FileSink) Flush() error {
	if s.enc != nil {
		if err := s.enc.Flush(); err != nil {
			return fmt.Errorf("flush encoder: %w", err)
		}
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close ends the compressed frame, flushes and closes the file.
func (s *FileSink) Close() error {
	var firstErr error
	if s.enc != nil {
		if err := s.enc.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.buf.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
