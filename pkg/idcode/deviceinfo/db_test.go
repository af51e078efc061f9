package deviceinfo

import "testing"

func TestLookupKnownPart(t *testing.T) {
	// Version bits differ between silicon revisions.
	for _, raw := range []uint32{0x0362D093, 0x3362D093} {
		info := Lookup(raw)
		if !info.Known || info.Name != "XC7A35T" || info.IRLength != 6 {
			t.Fatalf("Lookup(%08X) = %+v", raw, info)
		}
		if info.Manufacturer.Name != "Xilinx" {
			t.Fatalf("manufacturer = %q", info.Manufacturer.Name)
		}
	}
}

func TestLookupUnknownPart(t *testing.T) {
	info := Lookup(0x4BA00477)
	if info.Known || info.IRLength != 0 {
		t.Fatalf("Lookup(ARM DAP) = %+v", info)
	}
	if info.Manufacturer.Name != "ARM" || info.IDCode.PartNumber != 0xBA00 {
		t.Fatalf("unexpected decode %+v", info)
	}
}
