package bsdl

import (
	"os"
	"path/filepath"
	"testing"
)

func mustParse(t *testing.T, input string) *File {
	t.Helper()
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	f, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if f.Entity == nil {
		t.Fatal("Entity is nil")
	}
	return f
}

func TestParseSimpleEntity(t *testing.T) {
	f := mustParse(t, `
	entity TEST_CHIP is
	end TEST_CHIP;
	`)

	if f.Entity.Name != "TEST_CHIP" {
		t.Errorf("Expected entity name 'TEST_CHIP', got '%s'", f.Entity.Name)
	}
}

func TestParseEntityWithGeneric(t *testing.T) {
	f := mustParse(t, `
	entity XC7A35T_CSG324 is
		generic (PHYSICAL_PIN_MAP : string := "CSG324");
	end XC7A35T_CSG324;
	`)

	if len(f.Entity.Generics) != 1 {
		t.Fatalf("Expected 1 generic, got %d", len(f.Entity.Generics))
	}
	gen := f.Entity.Generics[0]
	if gen.Name != "PHYSICAL_PIN_MAP" || gen.Type != "string" {
		t.Errorf("Unexpected generic %s : %s", gen.Name, gen.Type)
	}
	if gen.Default == nil || *gen.Default != `"CSG324"` {
		t.Errorf("Unexpected default %v", gen.Default)
	}
}

func TestParseEntityWithPorts(t *testing.T) {
	f := mustParse(t, `
	entity TEST_CHIP is
		port (
			IO_L1P_T0_D00_MOSI_14 : inout bit;
			MGTAVCC_G0 : linkage bit_vector (1 to 4);
			TCK : in bit;
			TDO : out bit
		);
	end TEST_CHIP;
	`)

	if len(f.Entity.Ports) != 4 {
		t.Fatalf("Expected 4 ports, got %d", len(f.Entity.Ports))
	}

	p := f.Entity.Ports[0]
	if p.Name != "IO_L1P_T0_D00_MOSI_14" || p.Mode != "inout" || p.Type != "bit" {
		t.Errorf("Unexpected port %+v", p)
	}

	p = f.Entity.Ports[1]
	if p.Mode != "linkage" || p.Type != "bit_vector" {
		t.Errorf("Unexpected port %+v", p)
	}
	if p.Range == nil || p.Range.From != 1 || p.Range.Dir != "to" || p.Range.To != 4 {
		t.Errorf("Unexpected range %+v", p.Range)
	}

	if f.Entity.Ports[2].Mode != "in" || f.Entity.Ports[3].Mode != "out" {
		t.Errorf("Expected in/out modes, got %s/%s", f.Entity.Ports[2].Mode, f.Entity.Ports[3].Mode)
	}
}

func TestParseUseAndConstant(t *testing.T) {
	f := mustParse(t, `
	entity TEST_CHIP is
		use STD_1149_1_2001.all;
		constant CSG324: PIN_MAP_STRING := "TCK : L5," & "TDO : N5,";
	end TEST_CHIP;
	`)

	if len(f.Entity.Decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d", len(f.Entity.Decls))
	}
	use := f.Entity.Decls[0].Use
	if use == nil || use.Package != "STD_1149_1_2001" || use.Item != "all" {
		t.Errorf("Unexpected use clause %+v", use)
	}
	c := f.Entity.Decls[1].Constant
	if c == nil || c.Name != "CSG324" || c.Type != "PIN_MAP_STRING" {
		t.Fatalf("Unexpected constant %+v", c)
	}
	if got := c.Value.Text(); got != "TCK : L5,TDO : N5," {
		t.Errorf("Unexpected constant value %q", got)
	}
}

func TestParseAttributes(t *testing.T) {
	f := mustParse(t, `
	entity TEST_CHIP is
		attribute INSTRUCTION_LENGTH of TEST_CHIP: entity is 5;
		attribute TAP_SCAN_CLOCK of TCK : signal is (66.0e6, BOTH);
		attribute instruction_length of TEST_CHIP: entity is 6;
	end TEST_CHIP;
	`)

	attrs := f.Entity.Attributes()
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	if attrs[0].Of != "TEST_CHIP" || attrs[0].Class != "entity" {
		t.Errorf("Unexpected attribute %+v", attrs[0])
	}

	clock := attrs[1]
	if clock.Class != "signal" || len(clock.Value.Terms) != 1 || len(clock.Value.Terms[0].Tuple) != 2 {
		t.Fatalf("Unexpected clock attribute %+v", clock)
	}
	if freq := clock.Value.Terms[0].Tuple[0].Terms[0].Real; freq == nil || *freq != 66.0e6 {
		t.Errorf("Unexpected clock frequency %v", freq)
	}

	// Lookup is case-insensitive and the later statement wins.
	if v, ok := f.Entity.Attribute("INSTRUCTION_LENGTH").Value.Int(); !ok || v != 6 {
		t.Errorf("Expected INSTRUCTION_LENGTH 6, got %d (ok=%v)", v, ok)
	}
	if f.Entity.Attribute("BOUNDARY_LENGTH") != nil {
		t.Errorf("Expected no BOUNDARY_LENGTH attribute")
	}
}

func TestParseFileReportsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.bsd")
	if err := os.WriteFile(path, []byte("entity X is\n  attribute ;\nend X;\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	if _, err := parser.ParseFile(path); err == nil {
		t.Fatal("Expected a parse error")
	}
}
