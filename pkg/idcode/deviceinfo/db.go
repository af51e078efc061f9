// Package deviceinfo maps IDCODEs to known parts.
package deviceinfo

import "github.com/OpenTraceLab/jtagwatch/pkg/idcode"

// DeviceInfo describes a part identified by its IDCODE.
type DeviceInfo struct {
	IDCode       idcode.IDCode
	Manufacturer idcode.Manufacturer

	Name     string // "XC7A35T"
	Family   string // "Artix-7"
	IRLength int    // 0 when unknown
	Known    bool
}

type key struct {
	manufacturer uint16
	part         uint16
}

var db = make(map[key]DeviceInfo)

func register(manufacturer, part uint16, info DeviceInfo) {
	db[key{manufacturer, part}] = info
}

// Lookup identifies raw. The version field is not part of the key.
func Lookup(raw uint32) DeviceInfo {
	id := idcode.Parse(raw)
	m, _ := idcode.LookupManufacturer(id.ManufacturerCode)

	info, ok := db[key{id.ManufacturerCode, id.PartNumber}]
	if !ok {
		info = DeviceInfo{Name: "unknown device"}
	}
	info.IDCode = id
	info.Manufacturer = m
	info.Known = ok
	return info
}
