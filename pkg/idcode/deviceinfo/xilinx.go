package deviceinfo

func init() {
	const xilinx = 0x049

	for _, d := range []struct {
		part   uint16
		name   string
		family string
		ir     int
	}{
		{0x362D, "XC7A35T", "Artix-7", 6},
		{0x362C, "XC7A50T", "Artix-7", 6},
		{0x3632, "XC7A75T", "Artix-7", 6},
		{0x3631, "XC7A100T", "Artix-7", 6},
		{0x3636, "XC7A200T", "Artix-7", 6},
		{0x3651, "XC7K325T", "Kintex-7", 6},
		{0x3722, "XC7Z010", "Zynq-7000", 6},
		{0x3727, "XC7Z020", "Zynq-7000", 6},
	} {
		register(xilinx, d.part, DeviceInfo{Name: d.name, Family: d.family, IRLength: d.ir})
	}
}
