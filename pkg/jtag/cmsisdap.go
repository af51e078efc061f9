package jtag

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// packetConn exchanges one request packet for one response packet.
type packetConn interface {
	WriteRead(cmd []byte) ([]byte, error)
	PacketSize() int
	Close() error
}

// CMSISDAPAdapter drives a CMSIS-DAP probe in JTAG mode. Shifts longer than
// one packet are split over several DAP_JTAG_Sequence requests.
type CMSISDAPAdapter struct {
	conn   packetConn
	logger *zap.Logger

	mu        sync.Mutex
	info      AdapterInfo
	speedHz   int
	connected bool
}

// OpenCMSISDAP opens the probe with the given USB IDs and switches it to
// JTAG.
func OpenCMSISDAP(vid, pid uint16, logger *zap.Logger) (*CMSISDAPAdapter, error) {
	conn, err := OpenUSB(vid, pid)
	if err != nil {
		return nil, err
	}
	a, err := newCMSISDAPAdapter(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func newCMSISDAPAdapter(conn packetConn, logger *zap.Logger) (*CMSISDAPAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &CMSISDAPAdapter{conn: conn, logger: logger}
	if err := a.queryInfo(); err != nil {
		return nil, fmt.Errorf("cmsis-dap: query info: %w", err)
	}
	if err := a.connect(); err != nil {
		return nil, fmt.Errorf("cmsis-dap: connect: %w", err)
	}
	return a, nil
}

func (a *CMSISDAPAdapter) queryInfo() error {
	strs := make([]string, 4)
	for i, id := range []byte{infoVendor, infoProduct, infoSerial, infoFirmware} {
		resp, err := a.conn.WriteRead([]byte{dapInfo, id})
		if err != nil {
			return err
		}
		// Probes answer unsupported IDs with an empty string.
		strs[i], _ = decodeInfo(resp)
	}
	a.info = AdapterInfo{
		Name:         "CMSIS-DAP",
		Vendor:       strs[0],
		Model:        strs[1],
		SerialNumber: strs[2],
		Firmware:     strs[3],
		MinFrequency: 1_000,
		MaxFrequency: 10_000_000,
	}
	return nil
}

func (a *CMSISDAPAdapter) connect() error {
	resp, err := a.conn.WriteRead([]byte{dapConnect, dapPortJTAG})
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[0] != dapConnect {
		return fmt.Errorf("malformed DAP_Connect response")
	}
	if resp[1] != dapPortJTAG {
		return fmt.Errorf("probe selected port %d, want JTAG", resp[1])
	}
	a.connected = true
	return nil
}

func (a *CMSISDAPAdapter) Info() (AdapterInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info, nil
}

func (a *CMSISDAPAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shift(tms, tdi, bits)
}

func (a *CMSISDAPAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shift(tms, tdi, bits)
}

func (a *CMSISDAPAdapter) shift(tms, tdi []byte, bits int) ([]byte, error) {
	required, err := ValidateShiftBuffers(tms, tdi, bits)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	batches, err := batchSequences(splitSequences(tms, tdi, bits), a.conn.PacketSize())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("dap shift", zap.Int("bits", bits), zap.Int("packets", len(batches)))

	tdo := make([]byte, required)
	pos := 0
	for _, batch := range batches {
		resp, err := a.conn.WriteRead(encodeSequences(batch))
		if err != nil {
			return nil, fmt.Errorf("cmsis-dap: shift: %w", err)
		}
		if pos, err = decodeSequences(resp, batch, tdo, pos); err != nil {
			return nil, err
		}
	}
	return tdo, nil
}

// ResetTAP clocks five TMS=1 cycles. A hard reset also pulses nRESET.
func (a *CMSISDAPAdapter) ResetTAP(hard bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hard {
		resp, err := a.conn.WriteRead([]byte{dapResetTarget})
		if err != nil {
			return fmt.Errorf("cmsis-dap: reset target: %w", err)
		}
		if err := checkStatus(resp, dapResetTarget); err != nil {
			return err
		}
	}

	seq := []dapSequence{newSequence(5, true, false, []byte{0})}
	resp, err := a.conn.WriteRead(encodeSequences(seq))
	if err != nil {
		return fmt.Errorf("cmsis-dap: TAP reset: %w", err)
	}
	return checkStatus(resp, dapJTAGSequence)
}

// SetSpeed sets the TCK frequency.
func (a *CMSISDAPAdapter) SetSpeed(hz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hz < a.info.MinFrequency || hz > a.info.MaxFrequency {
		return fmt.Errorf("cmsis-dap: frequency %d Hz out of range [%d, %d]",
			hz, a.info.MinFrequency, a.info.MaxFrequency)
	}
	resp, err := a.conn.WriteRead(encodeClock(uint32(hz)))
	if err != nil {
		return fmt.Errorf("cmsis-dap: set clock: %w", err)
	}
	if err := checkStatus(resp, dapSWJClock); err != nil {
		return err
	}
	a.speedHz = hz
	return nil
}

// Close disconnects the probe and releases the USB device.
func (a *CMSISDAPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		if _, err := a.conn.WriteRead([]byte{dapDisconnect}); err != nil {
			a.logger.Warn("cmsis-dap disconnect failed", zap.Error(err))
		}
		a.connected = false
	}
	return a.conn.Close()
}
