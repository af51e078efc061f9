package jtag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USB identifiers of the Raspberry Pi debug probe, the default CMSIS-DAP
// target.
const (
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	defaultPacketSize = 64
	defaultTimeout    = 5 * time.Second
)

// USBTransport exchanges CMSIS-DAP packets over the probe's vendor-class
// bulk endpoints.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	out *gousb.OutEndpoint
	in  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// OpenUSB opens the first device with the given IDs.
func OpenUSB(vid, pid uint16) (*USBTransport, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usb: open %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usb: device %04x:%04x not found", vid, pid)
	}
	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{ctx: ctx, dev: dev, packetSize: defaultPacketSize, timeout: defaultTimeout}
	if err := t.claim(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// claim selects the vendor-specific interface, falling back to interface 0,
// and opens its bulk endpoints.
func (t *USBTransport) claim() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("usb: config: %w", err)
	}
	t.cfg = cfg

	num := 0
	for _, d := range cfg.Desc.Interfaces {
		if len(d.AltSettings) > 0 && d.AltSettings[0].Class == gousb.ClassVendorSpec {
			num = d.Number
			break
		}
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("usb: claim interface %d: %w", num, err)
	}
	t.intf = intf

	outAddr, inAddr := -1, -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && outAddr < 0:
			outAddr = ep.Number
		case ep.Direction == gousb.EndpointDirectionIn && inAddr < 0:
			inAddr = ep.Number
			t.packetSize = ep.MaxPacketSize
		}
	}
	if outAddr < 0 || inAddr < 0 {
		return errors.New("usb: bulk endpoints not found")
	}

	if t.out, err = intf.OutEndpoint(outAddr); err != nil {
		return fmt.Errorf("usb: OUT endpoint: %w", err)
	}
	if t.in, err = intf.InEndpoint(inAddr); err != nil {
		return fmt.Errorf("usb: IN endpoint: %w", err)
	}
	return nil
}

// WriteRead sends cmd padded to a full packet and reads one response packet.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.out.WriteContext(ctx, packet); err != nil {
		return nil, fmt.Errorf("usb: write: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.in.ReadContext(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("usb: read: %w", err)
	}
	return resp[:n], nil
}

// PacketSize returns the endpoint's maximum packet size.
func (t *USBTransport) PacketSize() int {
	return t.packetSize
}

// SetTimeout bounds each WriteRead.
func (t *USBTransport) SetTimeout(d time.Duration) {
	t.timeout = d
}

// Close releases the interface, configuration, device and context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// InterfaceKind names a probe family.
type InterfaceKind string

const (
	InterfaceKindCMSISDAP InterfaceKind = "cmsis-dap"
	InterfaceKindPico     InterfaceKind = "picoprobe"
	InterfaceKindSim      InterfaceKind = "simulator"
)

// InterfaceInfo is a probe found by DiscoverInterfaces.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a human readable name.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Kind, i.VendorID, i.ProductID)
}

type knownProbe struct {
	kind        InterfaceKind
	vid, pid    uint16
	description string
}

var knownProbes = []knownProbe{
	{InterfaceKindCMSISDAP, VendorIDRaspberryPi, ProductIDCMSISDAP, "Raspberry Pi Debug Probe (CMSIS-DAP)"},
	{InterfaceKindCMSISDAP, 0x0D28, 0x0204, "DAPLink CMSIS-DAP"},
	{InterfaceKindCMSISDAP, 0x1366, 0x0101, "SEGGER J-Link CMSIS-DAP"},
	{InterfaceKindPico, VendorIDRaspberryPi, 0x000A, "Raspberry Pi Pico (CDC/JTAG)"},
}

// classify matches a descriptor against knownProbes.
func classify(vid, pid uint16) (InterfaceInfo, bool) {
	for _, k := range knownProbes {
		if k.vid == vid && k.pid == pid {
			return InterfaceInfo{Kind: k.kind, Description: k.description, VendorID: vid, ProductID: pid}, true
		}
	}
	return InterfaceInfo{}, false
}

// DiscoverInterfaces lists attached probes with known USB IDs. The simulator
// is always listed last.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var found []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	// The callback only inspects descriptors, so no device is opened.
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() != nil {
			return false
		}
		if info, ok := classify(uint16(desc.Vendor), uint16(desc.Product)); ok {
			found = append(found, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return found, fmt.Errorf("usb: enumerate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return found, err
	}

	found = append(found, InterfaceInfo{Kind: InterfaceKindSim, Description: "Simulator (no hardware)"})
	return found, nil
}
