package jtag

import (
	"fmt"
	"sync"
)

// ShiftRegion tells a simulator which kind of scan a shift belongs to.
type ShiftRegion uint8

const (
	ShiftRegionIR ShiftRegion = iota
	ShiftRegionDR
)

func (r ShiftRegion) String() string {
	if r == ShiftRegionIR {
		return "IR"
	}
	return "DR"
}

// ShiftHook produces TDO for a shift. tdi may be nil when only TMS matters.
type ShiftHook func(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error)

// ShiftOp is a recorded shift request.
type ShiftOp struct {
	Region ShiftRegion
	TMS    []byte
	TDI    []byte
	Bits   int
}

// SimAdapter is an in-memory Adapter. Without a hook it echoes TDI to TDO.
type SimAdapter struct {
	InfoData AdapterInfo
	OnShift  ShiftHook

	mu        sync.Mutex
	speedHz   int
	lastShift ShiftOp
	shifts    int
	resets    int
	hardReset int
}

// NewSimAdapter returns a simulator reporting info.
func NewSimAdapter(info AdapterInfo) *SimAdapter {
	return &SimAdapter{InfoData: info}
}

// LastShift returns a copy of the most recent shift request.
func (s *SimAdapter) LastShift() ShiftOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ShiftOp{
		Region: s.lastShift.Region,
		TMS:    append([]byte(nil), s.lastShift.TMS...),
		TDI:    append([]byte(nil), s.lastShift.TDI...),
		Bits:   s.lastShift.Bits,
	}
}

// Shifts returns the number of shift requests served.
func (s *SimAdapter) Shifts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shifts
}

// ResetCounts reports all resets and the hard ones among them.
func (s *SimAdapter) ResetCounts() (soft, hard int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets, s.hardReset
}

// Speed returns the last frequency set.
func (s *SimAdapter) Speed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speedHz
}

func (s *SimAdapter) Info() (AdapterInfo, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionIR, tms, tdi, bits)
}

func (s *SimAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionDR, tms, tdi, bits)
}

func (s *SimAdapter) ResetTAP(hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if hard {
		s.hardReset++
	}
	return nil
}

func (s *SimAdapter) SetSpeed(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("jtag: invalid speed %dHz", hz)
	}
	s.mu.Lock()
	s.speedHz = hz
	s.mu.Unlock()
	return nil
}

func (s *SimAdapter) shift(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	required, err := ValidateShiftBuffers(tms, tdi, bits)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastShift = ShiftOp{
		Region: region,
		TMS:    append([]byte(nil), tms...),
		TDI:    append([]byte(nil), tdi...),
		Bits:   bits,
	}
	s.shifts++
	hook := s.OnShift
	s.mu.Unlock()

	if hook != nil {
		return hook(region, tms, tdi, bits)
	}
	tdo := make([]byte, required)
	copy(tdo, tdi)
	return tdo, nil
}
