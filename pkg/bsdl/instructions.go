package bsdl

import (
	"fmt"
	"io"
	"strings"
)

// Instruction is one entry of the INSTRUCTION_OPCODE attribute. Opcode is the
// binary string as written, most significant bit first.
type Instruction struct {
	Name   string
	Opcode string
}

// InstructionSet is what a capture session needs to know about the TAP
// controller of a part.
type InstructionSet struct {
	Entity       string
	Length       int // INSTRUCTION_LENGTH
	Instructions []Instruction
	IDCode       string // IDCODE_REGISTER pattern, may contain X
}

// Xilinx 7-series opcodes, used when the BSDL file cannot be fully parsed.
const (
	xilinxIRLength = 6
	xilinxSample   = "000001"
)

// DefaultInstructionSet describes a Xilinx 7-series TAP.
func DefaultInstructionSet() *InstructionSet {
	return &InstructionSet{
		Length: xilinxIRLength,
		Instructions: []Instruction{
			{Name: "EXTEST", Opcode: "100110"},
			{Name: "SAMPLE", Opcode: xilinxSample},
			{Name: "USER1", Opcode: "000010"},
			{Name: "IDCODE", Opcode: "001001"},
			{Name: "BYPASS", Opcode: "111111"},
		},
	}
}

// ParseInstructions splits an INSTRUCTION_OPCODE value such as
// "BYPASS (11111), EXTEST (00000)". Entries without a parenthesised opcode
// are skipped. An instruction with several opcodes keeps the first.
func ParseInstructions(s string) []Instruction {
	var out []Instruction
	for _, part := range strings.Split(s, ")") {
		name, opcodes, ok := strings.Cut(part, "(")
		if !ok {
			continue
		}
		name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), ","))
		opcode, _, _ := strings.Cut(opcodes, ",")
		opcode = strings.TrimSpace(opcode)
		if name == "" || opcode == "" {
			continue
		}
		out = append(out, Instruction{Name: name, Opcode: opcode})
	}
	return out
}

// ParsePattern converts a binary pattern, most significant bit first, into
// a value and a mask of the bits that are not X. Other characters are
// skipped.
func ParsePattern(s string) (value, mask uint32, wildcards bool) {
	for _, ch := range s {
		switch ch {
		case '0', '1':
			value = value<<1 | uint32(ch-'0')
			mask = mask<<1 | 1
		case 'X', 'x':
			value <<= 1
			mask <<= 1
			wildcards = true
		}
	}
	return value, mask, wildcards
}

// FromFile extracts the instruction set from a parsed file. Missing
// attributes leave the corresponding fields zero.
func FromFile(f *File) *InstructionSet {
	set := &InstructionSet{}
	if f == nil || f.Entity == nil {
		return set
	}
	e := f.Entity
	set.Entity = e.Name
	if a := e.Attribute("INSTRUCTION_LENGTH"); a != nil {
		set.Length, _ = a.Value.Int()
	}
	if a := e.Attribute("INSTRUCTION_OPCODE"); a != nil {
		set.Instructions = ParseInstructions(a.Value.Text())
	}
	if a := e.Attribute("IDCODE_REGISTER"); a != nil {
		set.IDCode = a.Value.Text()
	}
	return set
}

// ParseInstructionSet parses a whole BSDL file from r.
func ParseInstructionSet(r io.Reader) (*InstructionSet, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	return FromFile(f), nil
}

// ReadInstructionSet parses the BSDL file at path.
func ReadInstructionSet(path string) (*InstructionSet, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return FromFile(f), nil
}

// Lookup returns the instruction named name, compared case-insensitively.
func (s *InstructionSet) Lookup(name string) (Instruction, bool) {
	if s == nil {
		return Instruction{}, false
	}
	for _, in := range s.Instructions {
		if strings.EqualFold(in.Name, name) {
			return in, true
		}
	}
	return Instruction{}, false
}

// Opcode returns the opcode of the named instruction as a value whose bit 0
// is shifted first. X bits are sent as 0.
func (s *InstructionSet) Opcode(name string) (uint32, error) {
	in, ok := s.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("bsdl: no %s instruction", name)
	}
	v, mask, _ := ParsePattern(in.Opcode)
	if mask == 0 {
		return 0, fmt.Errorf("bsdl: %s opcode %q is not binary", name, in.Opcode)
	}
	return v, nil
}

// MatchIDCode compares id against the IDCODE_REGISTER pattern. ok is false
// when the set carries no usable pattern.
func (s *InstructionSet) MatchIDCode(id uint32) (match, ok bool) {
	if s == nil || s.IDCode == "" {
		return false, false
	}
	v, mask, _ := ParsePattern(s.IDCode)
	if mask == 0 {
		return false, false
	}
	return id&mask == v&mask, true
}
