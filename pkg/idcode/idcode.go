// Package idcode decodes IEEE 1149.1 IDCODE values.
package idcode

import "fmt"

// IDCode is a decoded 32-bit IDCODE register.
type IDCode struct {
	Raw              uint32
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1], JEP106 bank and ID without parity
	Valid            bool   // bit 0 is set
}

// Parse splits raw into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		Valid:            raw&1 == 1,
	}
}

// Bank returns the JEP106 continuation count, zero based.
func (id IDCode) Bank() int {
	return int(id.ManufacturerCode >> 7)
}

func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (manufacturer %s, part 0x%04X, version %d)",
		id.Raw, m.Name, id.PartNumber, id.Version)
}

// Manufacturer is a JEP106 entry.
type Manufacturer struct {
	Code uint16
	Name string
}

// manufacturers holds the vendors that ship boundary-scan parts, keyed by
// the 11-bit IDCODE field.
var manufacturers = map[uint16]string{
	0x001: "AMD",
	0x009: "Intel",
	0x017: "Texas Instruments",
	0x020: "STMicroelectronics",
	0x021: "Lattice",
	0x029: "Microchip",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x0E7: "Microsemi",
	0x23B: "ARM",
	0x40D: "Gowin",
}

// LookupManufacturer returns the manufacturer for code. Unknown codes get a
// placeholder name and ok false.
func LookupManufacturer(code uint16) (m Manufacturer, ok bool) {
	name, ok := manufacturers[code]
	if !ok {
		name = fmt.Sprintf("unknown (0x%03X)", code)
	}
	return Manufacturer{Code: code, Name: name}, ok
}
