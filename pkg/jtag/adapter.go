// Package jtag drives JTAG probes at the TMS/TDI/TDO bit level.
//
// Bit buffers are packed LSB first: bit i lives in byte i/8 at position i%8.
// Bit 0 is the first bit clocked out on TDI and the first bit captured from
// TDO.
package jtag

import (
	"errors"
	"fmt"
)

// AdapterInfo describes a probe.
type AdapterInfo struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
	MinFrequency int // Hertz
	MaxFrequency int // Hertz
}

// Adapter clocks raw TMS/TDI sequences and returns what was seen on TDO.
// ShiftIR and ShiftDR behave identically on hardware; the region lets
// simulators tell instruction scans from data scans.
type Adapter interface {
	Info() (AdapterInfo, error)
	ShiftIR(tms, tdi []byte, bits int) (tdo []byte, err error)
	ShiftDR(tms, tdi []byte, bits int) (tdo []byte, err error)
	ResetTAP(hard bool) error
	SetSpeed(hz int) error
}

// ErrNotImplemented is returned for probe families and operations that have
// no backend.
var ErrNotImplemented = errors.New("jtag: not implemented")

// ValidateShiftBuffers checks that non-empty TMS and TDI buffers cover bits
// and returns the number of bytes a TDO buffer needs.
func ValidateShiftBuffers(tms, tdi []byte, bits int) (int, error) {
	if bits <= 0 {
		return 0, fmt.Errorf("jtag: bits must be positive, got %d", bits)
	}
	required := (bits + 7) / 8
	if len(tms) > 0 && len(tms) < required {
		return 0, fmt.Errorf("jtag: tms buffer too short, need %d bytes", required)
	}
	if len(tdi) > 0 && len(tdi) < required {
		return 0, fmt.Errorf("jtag: tdi buffer too short, need %d bytes", required)
	}
	return required, nil
}

// Bit reports bit i of buf. Bits beyond the buffer read as zero.
func Bit(buf []byte, i int) bool {
	if i < 0 || i/8 >= len(buf) {
		return false
	}
	return buf[i/8]&(1<<(uint(i)%8)) != 0
}

// SetBit sets bit i of buf to v.
func SetBit(buf []byte, i int, v bool) {
	if v {
		buf[i/8] |= 1 << (uint(i) % 8)
	} else {
		buf[i/8] &^= 1 << (uint(i) % 8)
	}
}

// PackBits packs bits into an LSB-first buffer.
func PackBits(bits []bool) []byte {
	if len(bits) == 0 {
		return nil
	}
	buf := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			SetBit(buf, i, true)
		}
	}
	return buf
}

// UnpackBits returns the first n bits of buf.
func UnpackBits(buf []byte, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = Bit(buf, i)
	}
	return out
}
