package scan

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Sampler captures the boundary register with the SAMPLE instruction.
type Sampler struct {
	Transport Transport

	// Instruction is the SAMPLE opcode, IRLength bits wide.
	Instruction uint32
	IRLength    int

	// Capacity is the capture length in bits. It is rounded down to whole
	// bytes.
	Capacity    int
	ResetPulses int
}

// Capture runs one full sample cycle and returns Capacity/8 bytes of TDO. An
// all-ones pattern is shifted in so the register is left holding idle values.
func (s *Sampler) Capture() ([]byte, error) {
	n := s.Capacity / 8
	if n == 0 {
		return nil, fmt.Errorf("scan: capacity %d is less than one byte", s.Capacity)
	}
	if err := s.Transport.ResetPulses(s.ResetPulses); err != nil {
		return nil, err
	}
	if err := s.Transport.EnterState("IDLE"); err != nil {
		return nil, err
	}
	if err := s.Transport.ShiftInstruction(s.Instruction, s.IRLength); err != nil {
		return nil, err
	}
	if err := s.Transport.EnterState("IDLE"); err != nil {
		return nil, err
	}
	data, err := s.Transport.ShiftPattern(bytes.Repeat([]byte{0xFF}, n))
	if err != nil {
		return nil, err
	}
	if err := s.Transport.EnterState("IDLE"); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadIDCode resets the TAP, which selects IDCODE (or BYPASS on parts
// without one), and reads 32 DR bits.
func ReadIDCode(t Transport) (uint32, error) {
	if err := t.ResetPulses(5); err != nil {
		return 0, err
	}
	data, err := t.ShiftPattern([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if err != nil {
		return 0, err
	}
	if err := t.EnterState("IDLE"); err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("scan: IDCODE read returned %d bytes", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}
