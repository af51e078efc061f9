// Package resolve joins a boundary-register layout with a pin map, giving each
// register bit a signal name and the flags the monitor filters on.
package resolve

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/xdc"
)

const (
	// Unknown is the signal name of bits whose pin is not in the pin map.
	Unknown = "<unknown>"

	// ClockSignal is ignored by default; it toggles on every capture.
	ClockSignal = "CLK_IN"

	inputType = "input"
)

// ResolvedBit is one row of the resolver table.
type ResolvedBit struct {
	Index  int
	Signal string
	Ignore bool
	Show   bool
	Bit    *bsdl.BoundaryBit // nil when the layout has no cell at Index
}

// Name returns the cell name, or Unknown for an absent cell.
func (r ResolvedBit) Name() string {
	if r.Bit == nil {
		return Unknown
	}
	return r.Bit.FullName
}

// Pin returns the package pin, or Unknown for an absent cell.
func (r ResolvedBit) Pin() string {
	if r.Bit == nil {
		return Unknown
	}
	return r.Bit.Pin
}

// Table is the resolver output, indexed by register position.
type Table struct {
	Bits        []ResolvedBit
	Sensitivity string
	Sensitive   bool // a sensitivity string was supplied
}

// Len returns the number of entries, which equals the layout's boundary
// length.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Bits)
}

// Options control how Build flags bits.
type Options struct {
	// Sensitivity, when non-nil, replaces the default ignore rule: only bits
	// whose signal matches it are reported after the first capture.
	Sensitivity *string
	Logger      *zap.Logger
}

// Build resolves every bit in [0, layout.BoundaryLength).
func Build(layout *bsdl.Layout, pins *xdc.PinMap, opts Options) *Table {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Table{}
	if opts.Sensitivity != nil {
		t.Sensitive = true
		t.Sensitivity = *opts.Sensitivity
	}
	if layout == nil || layout.BoundaryLength <= 0 {
		return t
	}

	entries := splitSensitivity(t.Sensitivity)
	t.Bits = make([]ResolvedBit, layout.BoundaryLength)
	for i := range t.Bits {
		rb := ResolvedBit{Index: i, Signal: Unknown}
		if bit, ok := layout.Bit(i); ok {
			rb.Bit = &bit
			if sig, found := pins.Lookup(bit.Pin); found {
				rb.Signal = sig
			}
			rb.Show = bit.Type == inputType
		}
		rb.Ignore = rb.Signal == ClockSignal

		if t.Sensitive {
			if i == 0 {
				logger.Info("Applying sensitivity list", zap.String("sensitivity", t.Sensitivity))
			}
			rb.Ignore = !sensitive(rb.Signal, t.Sensitivity, entries)
			if !rb.Ignore {
				logger.Info("Adding signal to sensitivity list",
					zap.Int("bit", i),
					zap.String("signal", rb.Signal))
			}
		}
		t.Bits[i] = rb
	}
	return t
}

// sensitive reports whether signal is selected by the sensitivity string:
// either the signal occurs in the whole string, or one of its entries occurs
// in a resolved signal. Both comparisons ignore case.
func sensitive(signal, sensitivity string, entries []string) bool {
	lsig := strings.ToLower(signal)
	if strings.Contains(strings.ToLower(sensitivity), lsig) {
		return true
	}
	if signal == Unknown {
		return false
	}
	for _, e := range entries {
		if strings.Contains(lsig, e) {
			return true
		}
	}
	return false
}

func splitSensitivity(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
