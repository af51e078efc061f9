// Package monitor polls boundary-scan captures and reports the signals that
// change between them.
package monitor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/jtagwatch/internal/timeutil"
	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/resolve"
)

// ErrShortCapture is returned when a capture holds fewer than Capacity/8
// bytes.
var ErrShortCapture = errors.New("monitor: short capture")

// rawDumpBytes is how much of each capture raw mode prints.
const rawDumpBytes = 256

// Capturer returns one boundary-register capture per call.
type Capturer interface {
	Capture() ([]byte, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func() ([]byte, error)

func (f CapturerFunc) Capture() ([]byte, error) { return f() }

// Change is one reported bit.
type Change struct {
	Index  int
	Name   string
	Pin    string
	Signal string
	Value  uint8
}

// Report is the result of one Step.
type Report struct {
	Elapsed time.Duration
	First   bool
	// Raw holds the dumped bytes in raw mode.
	Raw     []byte
	Changes []Change
}

// Options configure a Monitor.
type Options struct {
	// Table is the resolver output. Nil selects raw dump mode.
	Table    *resolve.Table
	Capacity int
	// Interval is the pause between captures in Run.
	Interval time.Duration
	Output   io.Writer
	Clock    timeutil.Clock
	Logger   *zap.Logger
}

// Monitor compares successive captures. It is not safe for concurrent use.
type Monitor struct {
	capturer Capturer
	table    *resolve.Table
	interval time.Duration
	out      io.Writer
	clock    timeutil.Clock
	logger   *zap.Logger

	first   bool
	start   time.Time
	current []byte
	last    []byte
}

// New returns a monitor whose elapsed times count from now.
func New(c Capturer, opts Options) *Monitor {
	if opts.Capacity <= 0 {
		opts.Capacity = bsdl.DefaultCapacity
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	size := opts.Capacity / 8
	return &Monitor{
		capturer: c,
		table:    opts.Table,
		interval: opts.Interval,
		out:      opts.Output,
		clock:    opts.Clock,
		logger:   opts.Logger,
		first:    true,
		start:    opts.Clock.Now(),
		current:  make([]byte, size),
		last:     make([]byte, size),
	}
}

// Run steps until ctx is cancelled or a step fails.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitoring started",
		zap.Int("bits", m.table.Len()),
		zap.Bool("raw", m.table == nil),
		zap.Duration("interval", m.interval))

	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info("monitoring stopped", zap.Error(err))
			return err
		}
		if _, err := m.Step(); err != nil {
			return err
		}
		if m.interval > 0 {
			select {
			case <-ctx.Done():
			case <-m.clock.After(m.interval):
			}
		}
	}
}

// Step takes one capture, writes the report and makes it the new baseline.
func (m *Monitor) Step() (Report, error) {
	data, err := m.capturer.Capture()
	if err != nil {
		return Report{}, err
	}
	if len(data) < len(m.current) {
		return Report{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortCapture, len(data), len(m.current))
	}
	copy(m.current, data)

	rep := Report{Elapsed: m.clock.Since(m.start), First: m.first}
	if m.table == nil {
		err = m.dump(&rep)
	} else {
		err = m.diff(&rep)
	}
	if err != nil {
		return rep, fmt.Errorf("monitor: write report: %w", err)
	}
	m.logger.Debug("capture compared",
		zap.Duration("elapsed", rep.Elapsed),
		zap.Int("changes", len(rep.Changes)))

	copy(m.last, m.current)
	m.first = false
	return rep, nil
}

func (m *Monitor) dump(rep *Report) error {
	n := min(rawDumpBytes, len(m.current))
	rep.Raw = append([]byte(nil), m.current[:n]...)
	_, err := io.WriteString(m.out, hex.Dump(rep.Raw))
	return err
}

func (m *Monitor) diff(rep *Report) error {
	limit := min(m.table.Len(), len(m.current)*8)
	for i := 0; i < limit; i++ {
		rb := m.table.Bits[i]
		if !rb.Show {
			continue
		}
		if !(m.first && !m.table.Sensitive) && rb.Ignore {
			continue
		}
		value := bit(m.current, i)
		if !m.first && value == bit(m.last, i) {
			continue
		}
		rep.Changes = append(rep.Changes, Change{
			Index:  i,
			Name:   rb.Name(),
			Pin:    rb.Pin(),
			Signal: rb.Signal,
			Value:  value,
		})
	}
	if len(rep.Changes) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(m.out, "T+%dms >>> Signal(s) changed.\n", rep.Elapsed.Milliseconds()); err != nil {
		return err
	}
	for _, c := range rep.Changes {
		if _, err := fmt.Fprintf(m.out, "bit#%d : %s (pin %s, signal %s) = %x\n",
			c.Index, c.Name, c.Pin, c.Signal, c.Value); err != nil {
			return err
		}
	}
	return nil
}

func bit(buf []byte, i int) uint8 {
	return buf[i>>3] >> uint(i&7) & 1
}
