// Package feed decodes the JSON-lines stream that mirrors the practice page
// into the process.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/verte-zerg/weakwords/internal/page"
)

const maxLineSize = 4 * 1024 * 1024

// Kind identifies a frame type.
type Kind string

// Frame kinds.
const (
	KindPage Kind = "page"
	KindKey  Kind = "key"
)

// Frame is one line of the feed. At is the page clock in milliseconds.
type Frame struct {
	Kind Kind           `json:"kind"`
	At   float64        `json:"at"`
	Page *page.Snapshot `json:"page,omitempty"`
	Key  string         `json:"key,omitempty"`

	Line int `json:"-"`
}

// Validate checks the fields required by the frame's kind.
func (f Frame) Validate() error {
	if math.IsNaN(f.At) || math.IsInf(f.At, 0) || f.At < 0 {
		return fmt.Errorf("invalid timestamp %v", f.At)
	}
	switch f.Kind {
	case KindPage:
		if f.Page == nil {
			return errors.New("page frame without page")
		}
	case KindKey:
		if f.Key == "" {
			return errors.New("key frame without key")
		}
	default:
		return fmt.Errorf("unknown frame kind %q", f.Kind)
	}
	return nil
}

// Decoder reads frames one line at a time.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
	log     *slog.Logger
}

// NewDecoder returns a decoder reading r.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner, log: logger}
}

// Next returns the next valid frame. Blank lines are skipped; malformed lines
// are logged and skipped. It returns io.EOF at the end of the stream.
func (d *Decoder) Next() (Frame, error) {
	for d.scanner.Scan() {
		d.line++
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			d.log.Warn("skipping malformed frame", "line", d.line, "error", err)
			continue
		}
		if err := f.Validate(); err != nil {
			d.log.Warn("skipping invalid frame", "line", d.line, "error", err)
			continue
		}
		f.Line = d.line
		return f, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("feed: read line %d: %w", d.line+1, err)
	}
	return Frame{}, io.EOF
}

// Stream sends every frame to out and closes it when the input ends. It
// returns nil at end of input.
func (d *Decoder) Stream(ctx context.Context, out chan<- Frame) error {
	defer close(out)
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
}
