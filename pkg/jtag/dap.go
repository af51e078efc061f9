package jtag

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs.
const (
	dapInfo         = 0x00
	dapConnect      = 0x02
	dapDisconnect   = 0x03
	dapResetTarget  = 0x0A
	dapSWJClock     = 0x11
	dapJTAGSequence = 0x14
)

// DAP_Info IDs.
const (
	infoVendor   = 0x01
	infoProduct  = 0x02
	infoSerial   = 0x03
	infoFirmware = 0x04
)

const (
	dapPortJTAG = 2
	dapOK       = 0x00

	seqClockMask  = 0x3F // 0 means 64
	seqTMS        = 0x40
	seqCaptureTDO = 0x80

	maxSeqClocks = 64
)

// dapSequence is one entry of a DAP_JTAG_Sequence request: up to 64 clocks
// with a constant TMS level.
type dapSequence struct {
	info byte
	tdi  []byte
}

func newSequence(clocks int, tms, capture bool, tdi []byte) dapSequence {
	info := byte(clocks & seqClockMask)
	if tms {
		info |= seqTMS
	}
	if capture {
		info |= seqCaptureTDO
	}
	return dapSequence{info: info, tdi: tdi}
}

func (s dapSequence) clocks() int {
	if n := int(s.info & seqClockMask); n != 0 {
		return n
	}
	return maxSeqClocks
}

func (s dapSequence) tms() bool     { return s.info&seqTMS != 0 }
func (s dapSequence) capture() bool { return s.info&seqCaptureTDO != 0 }

// tdoLen is the number of response bytes the sequence produces.
func (s dapSequence) tdoLen() int {
	if !s.capture() {
		return 0
	}
	return (s.clocks() + 7) / 8
}

// splitSequences cuts a shift into runs of equal TMS, each at most 64 clocks.
// A nil tms means TMS low throughout. Every sequence captures TDO.
func splitSequences(tms, tdi []byte, bits int) []dapSequence {
	var seqs []dapSequence
	for pos := 0; pos < bits; {
		level := Bit(tms, pos)
		n := 1
		for pos+n < bits && n < maxSeqClocks && Bit(tms, pos+n) == level {
			n++
		}
		chunk := make([]byte, (n+7)/8)
		copyBits(chunk, 0, tdi, pos, n)
		seqs = append(seqs, newSequence(n, level, true, chunk))
		pos += n
	}
	return seqs
}

// batchSequences groups sequences into requests that fit one packet each.
func batchSequences(seqs []dapSequence, packetSize int) ([][]dapSequence, error) {
	var batches [][]dapSequence
	var cur []dapSequence
	size := 2
	for _, s := range seqs {
		need := 1 + len(s.tdi)
		if 2+need > packetSize {
			return nil, fmt.Errorf("cmsis-dap: packet size %d too small for a %d-clock sequence", packetSize, s.clocks())
		}
		if size+need > packetSize || len(cur) == 255 {
			batches = append(batches, cur)
			cur, size = nil, 2
		}
		cur = append(cur, s)
		size += need
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}

func encodeSequences(seqs []dapSequence) []byte {
	cmd := []byte{dapJTAGSequence, byte(len(seqs))}
	for _, s := range seqs {
		cmd = append(cmd, s.info)
		cmd = append(cmd, s.tdi...)
	}
	return cmd
}

// decodeSequences copies the captured TDO bits of a response into tdo,
// starting at bit pos, and returns the position after the last bit.
func decodeSequences(resp []byte, seqs []dapSequence, tdo []byte, pos int) (int, error) {
	if err := checkStatus(resp, dapJTAGSequence); err != nil {
		return pos, err
	}
	off := 2
	for _, s := range seqs {
		n := s.tdoLen()
		if n == 0 {
			pos += s.clocks()
			continue
		}
		if off+n > len(resp) {
			return pos, fmt.Errorf("cmsis-dap: sequence response truncated at %d bytes", len(resp))
		}
		copyBits(tdo, pos, resp[off:off+n], 0, s.clocks())
		off += n
		pos += s.clocks()
	}
	return pos, nil
}

// copyBits copies n bits from src starting at bit from into dst at bit to.
// Source bits past the end of src read as zero.
func copyBits(dst []byte, to int, src []byte, from, n int) {
	for i := 0; i < n; i++ {
		SetBit(dst, to+i, Bit(src, from+i))
	}
}

func checkStatus(resp []byte, cmd byte) error {
	if len(resp) < 2 {
		return fmt.Errorf("cmsis-dap: response to 0x%02X too short", cmd)
	}
	if resp[0] != cmd {
		return fmt.Errorf("cmsis-dap: response ID 0x%02X, want 0x%02X", resp[0], cmd)
	}
	if resp[1] != dapOK {
		return fmt.Errorf("cmsis-dap: command 0x%02X failed with status 0x%02X", cmd, resp[1])
	}
	return nil
}

func decodeInfo(resp []byte) (string, error) {
	if len(resp) < 2 || resp[0] != dapInfo {
		return "", fmt.Errorf("cmsis-dap: malformed DAP_Info response")
	}
	n := int(resp[1])
	if len(resp) < 2+n {
		return "", fmt.Errorf("cmsis-dap: DAP_Info string truncated")
	}
	s := resp[2 : 2+n]
	// Strings are NUL terminated on the wire.
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), nil
}

func encodeClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = dapSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}
