package bsdl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func createTestBSDL(name string) string {
	return `entity ` + name + ` is
  generic (PHYSICAL_PIN_MAP : string := "PKG_TEST");
  port (
    PA0 : inout bit;
    PA1 : inout bit;
    TCK : in bit
  );
  use STD_1149_1_2001.all;
  attribute INSTRUCTION_LENGTH of ` + name + ` : entity is 5;
  attribute BOUNDARY_LENGTH of ` + name + ` : entity is 4;
  attribute INSTRUCTION_OPCODE of ` + name + ` : entity is
    "BYPASS (11111)," &
    "EXTEST (00000)," &
    "SAMPLE (10101)," &
    "IDCODE (00110, 00111)";
  attribute IDCODE_REGISTER of ` + name + ` : entity is
    "XXXX" &              -- version
    "0011011000101101" &  -- part number
    "00001001001" &       -- manufacturer
    "1";
  attribute BOUNDARY_REGISTER of ` + name + ` : entity is
    "3 (BC_1, *, CONTROL, 1)," &
    "2 (BC_1, PA1, OUTPUT3, X, 3, 1, Z)," &
    "1 (BC_1, *, CONTROL, 1)," &
    "0 (BC_1, PA0, INPUT, X)";
  constant PKG_TEST: PIN_MAP_STRING := "PA0 : A0," & "PA1 : A1";
end ` + name + `;
`
}

func TestParseInstructions(t *testing.T) {
	got := ParseInstructions("BYPASS (11111), EXTEST (00000),SAMPLE(10101), IDCODE (00110, 00111), junk")
	want := []Instruction{
		{Name: "BYPASS", Opcode: "11111"},
		{Name: "EXTEST", Opcode: "00000"},
		{Name: "SAMPLE", Opcode: "10101"},
		{Name: "IDCODE", Opcode: "00110"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("instructions mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in        string
		value     uint32
		mask      uint32
		wildcards bool
	}{
		{"000001", 0x01, 0x3f, false},
		{"1X0x", 0x8, 0xa, true},
		{" 1 0 ", 0x2, 0x3, false},
		{"", 0, 0, false},
	}
	for _, tc := range tests {
		v, m, w := ParsePattern(tc.in)
		if v != tc.value || m != tc.mask || w != tc.wildcards {
			t.Errorf("ParsePattern(%q) = (%#x, %#x, %v), want (%#x, %#x, %v)",
				tc.in, v, m, w, tc.value, tc.mask, tc.wildcards)
		}
	}
}

func TestParseInstructionSet(t *testing.T) {
	set, err := ParseInstructionSet(strings.NewReader(createTestBSDL("TEST_CHIP")))
	if err != nil {
		t.Fatalf("ParseInstructionSet returned error: %v", err)
	}

	if set.Entity != "TEST_CHIP" || set.Length != 5 {
		t.Fatalf("got entity %q length %d, want TEST_CHIP 5", set.Entity, set.Length)
	}

	sample, err := set.Opcode("sample")
	if err != nil {
		t.Fatalf("Opcode(sample) returned error: %v", err)
	}
	if sample != 0x15 {
		t.Fatalf("Opcode(sample) = %#x, want 0x15", sample)
	}
	if _, err := set.Opcode("HIGHZ"); err == nil {
		t.Fatalf("Opcode(HIGHZ) should fail")
	}

	if match, ok := set.MatchIDCode(0x3362d093); !ok || !match {
		t.Fatalf("MatchIDCode(0x3362d093) = %v, %v; want match", match, ok)
	}
	if match, ok := set.MatchIDCode(0x13631093); !ok || match {
		t.Fatalf("MatchIDCode(0x13631093) = %v, %v; want mismatch", match, ok)
	}
}

func TestInstructionSetFileAndLayoutAgree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_chip.bsd")
	if err := os.WriteFile(path, []byte(createTestBSDL("TEST_CHIP")), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := ReadInstructionSet(path)
	if err != nil {
		t.Fatalf("ReadInstructionSet returned error: %v", err)
	}
	layout, err := ParseLayoutFile(path)
	if err != nil {
		t.Fatalf("ParseLayoutFile returned error: %v", err)
	}

	if set.Entity != layout.PartName || layout.BoundaryLength != 4 {
		t.Fatalf("entity %q, layout %q/%d", set.Entity, layout.PartName, layout.BoundaryLength)
	}
	bit, ok := layout.Bit(0)
	if !ok || bit.FullName != "PA0" || bit.Type != "INPUT" {
		t.Fatalf("bit 0 = %+v, %v", bit, ok)
	}
}

func TestDefaultInstructionSet(t *testing.T) {
	set := DefaultInstructionSet()
	if set.Length != 6 {
		t.Fatalf("Length = %d, want 6", set.Length)
	}
	sample, err := set.Opcode("SAMPLE")
	if err != nil || sample != 0x01 {
		t.Fatalf("Opcode(SAMPLE) = %#x, %v; want 0x01", sample, err)
	}
	if _, ok := set.MatchIDCode(0); ok {
		t.Fatalf("default set has no IDCODE pattern")
	}
}

func TestReadInstructionSetMissingFile(t *testing.T) {
	_, err := ReadInstructionSet(filepath.Join(t.TempDir(), "missing.bsd"))
	if err == nil || !strings.Contains(err.Error(), "missing.bsd") {
		t.Fatalf("error %v should name the file", err)
	}
}
