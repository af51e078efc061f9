// Package scan drives boundary-scan captures over a JTAG adapter.
package scan

import (
	"fmt"

	"github.com/OpenTraceLab/jtagwatch/pkg/jtag"
	"github.com/OpenTraceLab/jtagwatch/pkg/tap"
)

// Transport is the set of TAP operations a capture needs.
type Transport interface {
	// EnterState moves the TAP to the named state (see tap.ParseState).
	EnterState(name string) error
	// ShiftInstruction shifts the low length bits of bits into IR, LSB
	// first, leaving the TAP in Exit1-IR.
	ShiftInstruction(bits uint32, length int) error
	// ShiftPattern shifts pattern through DR and returns what came out,
	// leaving the TAP in Exit1-DR.
	ShiftPattern(pattern []byte) ([]byte, error)
	// ResetPulses clocks count cycles with TMS high.
	ResetPulses(count int) error
}

// Port implements Transport on an Adapter, tracking the TAP state on the
// host.
type Port struct {
	adapter jtag.Adapter
	tap     *tap.StateMachine
}

// NewPort assumes the TAP starts in Test-Logic-Reset. Call ResetPulses
// before the first operation when that is not known.
func NewPort(adapter jtag.Adapter) *Port {
	return &Port{adapter: adapter, tap: tap.NewStateMachine()}
}

// State returns the tracked TAP state.
func (p *Port) State() tap.State {
	return p.tap.State()
}

func (p *Port) EnterState(name string) error {
	target, err := tap.ParseState(name)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return p.gotoState(target)
}

func (p *Port) ShiftInstruction(bits uint32, length int) error {
	if length <= 0 || length > 32 {
		return fmt.Errorf("scan: instruction length %d out of range [1, 32]", length)
	}
	if err := p.gotoState(tap.StateShiftIR); err != nil {
		return err
	}
	tdi := make([]byte, (length+7)/8)
	for i := 0; i < length; i++ {
		jtag.SetBit(tdi, i, bits>>uint(i)&1 == 1)
	}
	_, err := p.shift(domainIR, tdi, length)
	return err
}

func (p *Port) ShiftPattern(pattern []byte) ([]byte, error) {
	if len(pattern) == 0 {
		return nil, fmt.Errorf("scan: empty pattern")
	}
	if err := p.gotoState(tap.StateShiftDR); err != nil {
		return nil, err
	}
	return p.shift(domainDR, pattern, len(pattern)*8)
}

func (p *Port) ResetPulses(count int) error {
	if count <= 0 {
		return nil
	}
	tms := make([]bool, count)
	for i := range tms {
		tms[i] = true
	}
	domain := domainFromState(p.tap.State())
	for range tms {
		p.tap.Clock(true)
	}
	_, err := p.dispatch(domain, tms, nil)
	return err
}

func (p *Port) gotoState(target tap.State) error {
	seq, err := p.tap.GoTo(target)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(seq.TMS) == 0 {
		return nil
	}
	_, err = p.dispatch(domainFromState(seq.States[0]), seq.TMS, nil)
	return err
}

// shift clocks bits through the selected register with TMS high on the last
// bit only.
func (p *Port) shift(domain shiftDomain, tdi []byte, bits int) ([]byte, error) {
	tms := make([]bool, bits)
	tms[bits-1] = true
	for _, bit := range tms {
		p.tap.Clock(bit)
	}
	return p.dispatch(domain, tms, tdi)
}

func (p *Port) dispatch(domain shiftDomain, tms []bool, tdi []byte) ([]byte, error) {
	tmsBytes := jtag.PackBits(tms)
	if tdi == nil {
		tdi = make([]byte, len(tmsBytes))
	}
	var (
		tdo []byte
		err error
	)
	switch domain {
	case domainIR:
		tdo, err = p.adapter.ShiftIR(tmsBytes, tdi, len(tms))
	default:
		tdo, err = p.adapter.ShiftDR(tmsBytes, tdi, len(tms))
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %s shift: %w", domain, err)
	}
	return tdo, nil
}

type shiftDomain uint8

const (
	domainDR shiftDomain = iota
	domainIR
)

func (d shiftDomain) String() string {
	if d == domainIR {
		return "IR"
	}
	return "DR"
}

func domainFromState(state tap.State) shiftDomain {
	switch state {
	case tap.StateSelectIRScan,
		tap.StateCaptureIR,
		tap.StateShiftIR,
		tap.StateExit1IR,
		tap.StatePauseIR,
		tap.StateExit2IR,
		tap.StateUpdateIR:
		return domainIR
	default:
		return domainDR
	}
}
