package resolve

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/xdc"
)

const boardXDC = `set_property PACKAGE_PIN A3 [get_ports DATA_BUS[3]]
set_property PACKAGE_PIN E3 [get_ports {CLK_IN}]
set_property PACKAGE_PIN H5 [get_ports {sys_clk}]
set_property PACKAGE_PIN J5 [get_ports {led[0]}]
`

const boardBSDL = `attribute BOUNDARY_LENGTH of XC7A35T_CSG324 : entity is 6;
	"   0 (BC_2, U1_DATA_PIN_A3, input, X)," &
	"   1 (BC_2, IO_L12P_T1_MRCC_E3, input, X)," &
	"   2 (BC_2, IO_L1N_T0_H5, input, X)," &
	"   3 (BC_2, IO_L2P_T0_J5, output3, X, 4, 1, PULL0)," &
	"   5 (BC_2, RESETN, input, 1)" ;
`

func load(t *testing.T, pinsText, layoutText string) (*bsdl.Layout, *xdc.PinMap) {
	t.Helper()
	pins, err := xdc.Parse(strings.NewReader(pinsText))
	if err != nil {
		t.Fatalf("xdc.Parse: %v", err)
	}
	layout, err := bsdl.ParseLayout(strings.NewReader(layoutText))
	if err != nil {
		t.Fatalf("bsdl.ParseLayout: %v", err)
	}
	return layout, pins
}

func strPtr(s string) *string { return &s }

func TestBuildTableSize(t *testing.T) {
	layout, pins := load(t, boardXDC, boardBSDL)
	table := Build(layout, pins, Options{})
	if table.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", table.Len())
	}

	// Index 4 was never declared.
	rb := table.Bits[4]
	if rb.Bit != nil || rb.Signal != Unknown || rb.Show {
		t.Fatalf("bit 4 = %+v, want absent, unknown and hidden", rb)
	}
	if rb.Name() != Unknown || rb.Pin() != Unknown {
		t.Fatalf("absent bit names = %q/%q", rb.Name(), rb.Pin())
	}
}

func TestBuildResolvesSignals(t *testing.T) {
	layout, pins := load(t, boardXDC, boardBSDL)
	table := Build(layout, pins, Options{})

	type row struct {
		Signal string
		Ignore bool
		Show   bool
	}
	var got []row
	for _, rb := range table.Bits {
		got = append(got, row{rb.Signal, rb.Ignore, rb.Show})
	}
	want := []row{
		{"DATA_BUS[3]", false, true},
		{"CLK_IN", true, true},
		{"sys_clk", false, true},
		{"led[0]", false, false},
		{Unknown, false, false},
		{Unknown, false, true}, // RESETN has no underscore; pin is the whole name
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	if table.Bits[0].Pin() != "A3" || table.Bits[5].Pin() != "RESETN" {
		t.Fatalf("pins = %q, %q", table.Bits[0].Pin(), table.Bits[5].Pin())
	}
}

func TestBuildLastMappingWins(t *testing.T) {
	layout, pins := load(t,
		"set_property PACKAGE_PIN A3 [get_ports SIG1]\nset_property PACKAGE_PIN A3 [get_ports SIG2]\n",
		"attribute BOUNDARY_LENGTH of X : entity is 1;\n\"0 (BC_1, IO_A3, input, X)\"\n")

	table := Build(layout, pins, Options{})
	if got := table.Bits[0].Signal; got != "SIG2" {
		t.Fatalf("Signal = %q, want SIG2", got)
	}
}

func TestBuildInputTypeIsExact(t *testing.T) {
	layout, pins := load(t, "", `attribute BOUNDARY_LENGTH of X : entity is 2;
"0 (BC_1, IO_A1, INPUT, X)," &
"1 (BC_1, IO_A2, input, X)"`)

	table := Build(layout, pins, Options{})
	if table.Bits[0].Show || !table.Bits[1].Show {
		t.Fatalf("show flags = %v, %v; want false, true", table.Bits[0].Show, table.Bits[1].Show)
	}
}

func TestBuildSensitivity(t *testing.T) {
	layout, pins := load(t, boardXDC, boardBSDL)
	core, logs := observer.New(zap.InfoLevel)

	table := Build(layout, pins, Options{Sensitivity: strPtr("CLK"), Logger: zap.New(core)})
	if !table.Sensitive || table.Sensitivity != "CLK" {
		t.Fatalf("table sensitivity = %v %q", table.Sensitive, table.Sensitivity)
	}

	ignored := map[string]bool{}
	for _, rb := range table.Bits {
		ignored[rb.Signal] = rb.Ignore
	}
	want := map[string]bool{
		"DATA_BUS[3]": true,
		"CLK_IN":      false,
		"sys_clk":     false,
		"led[0]":      true,
		Unknown:       true,
	}
	if diff := cmp.Diff(want, ignored); diff != "" {
		t.Fatalf("ignore flags mismatch (-want +got):\n%s", diff)
	}

	if n := logs.FilterMessage("Applying sensitivity list").Len(); n != 1 {
		t.Fatalf("sensitivity notice logged %d times, want 1", n)
	}
	if n := logs.FilterMessage("Adding signal to sensitivity list").Len(); n != 2 {
		t.Fatalf("added %d signals, want 2", n)
	}
}

func TestBuildSensitivityList(t *testing.T) {
	layout, pins := load(t, boardXDC, boardBSDL)

	// The signal occurring inside the sensitivity string also selects it.
	table := Build(layout, pins, Options{Sensitivity: strPtr("data_bus[3], led[0]")})
	if table.Bits[0].Ignore || table.Bits[3].Ignore {
		t.Fatalf("listed signals should not be ignored: %+v", table.Bits[:4])
	}
	if !table.Bits[1].Ignore || !table.Bits[2].Ignore {
		t.Fatalf("unlisted signals should be ignored: %+v", table.Bits[:4])
	}
}

func TestBuildEmptySensitivityIgnoresClockToo(t *testing.T) {
	layout, pins := load(t, boardXDC, boardBSDL)
	table := Build(layout, pins, Options{Sensitivity: strPtr("")})
	for _, rb := range table.Bits {
		if !rb.Ignore {
			t.Fatalf("bit %d (%s) should be ignored with an empty sensitivity list", rb.Index, rb.Signal)
		}
	}
}

func TestBuildWithoutHeader(t *testing.T) {
	layout, pins := load(t, boardXDC, `"0 (BC_1, IO_A3, input, X)"`)
	if table := Build(layout, pins, Options{}); table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
	if table := Build(nil, nil, Options{}); table.Len() != 0 {
		t.Fatalf("nil layout Len() = %d", table.Len())
	}
}

func TestBuildDataBusAtBitThree(t *testing.T) {
	layout, pins := load(t, "set_property PACKAGE_PIN A3 [get_ports DATA_BUS[3]]\n",
		"attribute BOUNDARY_LENGTH of XC7A35T : entity is 8;\n"+
			`"3 (BC_2, U1_DATA_PIN_A3, input, X),"`+"\n")
	table := Build(layout, pins, Options{})

	rb := table.Bits[3]
	if rb.Pin() != "A3" || rb.Signal != "DATA_BUS[3]" || !rb.Show || rb.Ignore {
		t.Fatalf("bit 3 = %+v (pin %q)", rb, rb.Pin())
	}
	for _, i := range []int{0, 1, 2, 4, 7} {
		if table.Bits[i].Bit != nil || table.Bits[i].Show {
			t.Fatalf("bit %d should be absent and hidden", i)
		}
	}
}
