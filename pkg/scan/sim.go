package scan

import (
	"sync"

	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/jtag"
	"github.com/OpenTraceLab/jtagwatch/pkg/tap"
)

// SimOptions describes a simulated single-device chain.
type SimOptions struct {
	IDCode uint32
	// IRLength, SampleOpcode and IDCodeOpcode default to the Xilinx 7-series
	// values when zero.
	IRLength     int
	SampleOpcode uint32
	IDCodeOpcode uint32
	// BoundaryLength is the length of the boundary register.
	BoundaryLength int
	// Inputs lists the boundary cells driven by Stimulus.
	Inputs []int
}

// Stimulus sets the input cells before capture number n. pins is indexed by
// boundary cell.
type Stimulus func(n int, inputs []int, pins []bool)

// CountStimulus drives the inputs as a binary counter of the capture number:
// the first input toggles on every capture, the second on every other one.
func CountStimulus(n int, inputs []int, pins []bool) {
	for j, cell := range inputs {
		pins[cell] = j < 63 && n>>uint(j)&1 == 1
	}
}

// SimTarget models one TAP clock by clock behind a jtag.SimAdapter. SAMPLE
// selects the boundary register, IDCODE a 32-bit identification register and
// any other instruction the 1-bit bypass register.
type SimTarget struct {
	opts     SimOptions
	stimulus Stimulus
	adapter  *jtag.SimAdapter

	mu       sync.Mutex
	tap      *tap.StateMachine
	ir       uint32
	irShift  uint32
	dr       []bool
	pins     []bool
	captures int
}

// NewSimTarget returns a target whose inputs follow CountStimulus.
func NewSimTarget(opts SimOptions) *SimTarget {
	if opts.IRLength == 0 {
		opts.IRLength = 6
		opts.SampleOpcode = 0b000001
		opts.IDCodeOpcode = 0b001001
	}
	t := &SimTarget{
		opts:     opts,
		stimulus: CountStimulus,
		tap:      tap.NewStateMachine(),
		ir:       opts.IDCodeOpcode,
		pins:     make([]bool, opts.BoundaryLength),
	}
	t.adapter = jtag.NewSimAdapter(jtag.AdapterInfo{
		Name:         "Simulator",
		Vendor:       "jtagwatch",
		Model:        "boundary-scan target",
		MinFrequency: 1,
		MaxFrequency: 100_000_000,
	})
	t.adapter.OnShift = t.shift
	return t
}

// InputCells returns the indices of the layout's input cells in index order.
func InputCells(layout *bsdl.Layout) []int {
	var cells []int
	for i := 0; i < layout.BoundaryLength; i++ {
		if bit, ok := layout.Bit(i); ok && bit.Type == "input" {
			cells = append(cells, i)
		}
	}
	return cells
}

// SetStimulus replaces the input model.
func (t *SimTarget) SetStimulus(s Stimulus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stimulus = s
}

// Adapter returns the adapter the target is attached to.
func (t *SimTarget) Adapter() *jtag.SimAdapter {
	return t.adapter
}

// Captures returns how many times the boundary register was captured.
func (t *SimTarget) Captures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captures
}

// Instruction returns the latched IR value.
func (t *SimTarget) Instruction() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ir
}

func (t *SimTarget) shift(_ jtag.ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tdo := make([]byte, (bits+7)/8)
	for i := 0; i < bits; i++ {
		in := jtag.Bit(tdi, i)
		switch t.tap.State() {
		case tap.StateShiftDR:
			jtag.SetBit(tdo, i, t.dr[0])
			copy(t.dr, t.dr[1:])
			t.dr[len(t.dr)-1] = in
		case tap.StateShiftIR:
			jtag.SetBit(tdo, i, t.irShift&1 == 1)
			t.irShift >>= 1
			if in {
				t.irShift |= 1 << uint(t.opts.IRLength-1)
			}
		}

		switch t.tap.Clock(jtag.Bit(tms, i)) {
		case tap.StateTestLogicReset:
			t.ir = t.opts.IDCodeOpcode
		case tap.StateCaptureIR:
			t.irShift = 0b01
		case tap.StateUpdateIR:
			t.ir = t.irShift
		case tap.StateCaptureDR:
			t.captureDR()
		}
	}
	return tdo, nil
}

func (t *SimTarget) captureDR() {
	switch {
	case t.ir == t.opts.SampleOpcode && len(t.pins) > 0:
		if t.stimulus != nil {
			t.stimulus(t.captures, t.opts.Inputs, t.pins)
		}
		t.captures++
		t.dr = append(t.dr[:0], t.pins...)
	case t.ir == t.opts.IDCodeOpcode:
		t.dr = t.dr[:0]
		for i := 0; i < 32; i++ {
			t.dr = append(t.dr, t.opts.IDCode>>uint(i)&1 == 1)
		}
	default:
		t.dr = append(t.dr[:0], false)
	}
}
