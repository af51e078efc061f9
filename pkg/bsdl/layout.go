package bsdl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultCapacity is the largest boundary register, in bits, that a Layout
// stores by default. Records at or above the capacity are dropped.
const DefaultCapacity = 8192

var (
	// attribute BOUNDARY_LENGTH of XC7A35T_CSG324 : entity is 364;
	lengthLineRegexp = regexp.MustCompile(`(?i)^\s*attribute\s+BOUNDARY_LENGTH\s+of\s+(\S+?)\s*:\s*entity\s+is\s+(\d+)`)

	//	"   12 (BC_2, IO_L1P_T0_D00_MOSI_14, input, X)," &
	cellLineRegexp = regexp.MustCompile(`^\s*"\s*([-+]?\d+)\s*\(\s*[^,]*,([^,)]+),([^,)]+),([^,)]+)`)
)

// BoundaryBit is one cell of the boundary register as declared in the
// BOUNDARY_REGISTER attribute.
type BoundaryBit struct {
	Index    int
	FullName string // port or cell name, e.g. "IO_L1P_T0_D00_MOSI_14"
	Type     string // cell function, e.g. "input", "output3", "control"
	Default  string // safe value
	Pin      string // FullName after the last underscore
}

// Layout is the part of a BSDL file the monitor needs: the part name, the
// register length and the cells indexed by register position.
type Layout struct {
	PartName       string
	BoundaryLength int
	HasHeader      bool

	capacity int
	bits     []*BoundaryBit
}

// NewLayout returns an empty layout bounded to capacity bits. A non-positive
// capacity selects DefaultCapacity.
func NewLayout(capacity int) *Layout {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Layout{capacity: capacity}
}

// Capacity returns the bound on stored bit indices.
func (l *Layout) Capacity() int {
	return l.capacity
}

// Bit returns the cell stored at index. ok is false for indices that were
// never declared or were dropped.
func (l *Layout) Bit(index int) (BoundaryBit, bool) {
	if l == nil || index < 0 || index >= len(l.bits) || l.bits[index] == nil {
		return BoundaryBit{}, false
	}
	return *l.bits[index], true
}

// Len returns the number of cells stored.
func (l *Layout) Len() int {
	n := 0
	for _, b := range l.bits {
		if b != nil {
			n++
		}
	}
	return n
}

// Store records bit at its index, replacing any earlier cell there. It
// reports false, and stores nothing, when the index is outside the capacity.
func (l *Layout) Store(bit BoundaryBit) bool {
	if bit.Index < 0 || bit.Index >= l.capacity {
		return false
	}
	if bit.Index >= len(l.bits) {
		grown := make([]*BoundaryBit, bit.Index+1)
		copy(grown, l.bits)
		l.bits = grown
	}
	b := bit
	l.bits[bit.Index] = &b
	return true
}

// LengthDecl is the BOUNDARY_LENGTH attribute of a layout file.
type LengthDecl struct {
	PartName string
	Length   int
}

// ParseLayoutLine tries both statement shapes against line. Either result
// may be nil; a line can never produce both.
func ParseLayoutLine(line string) (*LengthDecl, *BoundaryBit) {
	if m := lengthLineRegexp.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return &LengthDecl{PartName: m[1], Length: n}, nil
		}
	}

	m := cellLineRegexp.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		// Out of int range; treated like any other out-of-bounds index.
		idx = -1
	}
	name := strings.TrimSpace(m[2])
	typ := strings.TrimSpace(m[3])
	def := strings.TrimSpace(m[4])
	if name == "" || typ == "" || def == "" {
		return nil, nil
	}
	return nil, &BoundaryBit{
		Index:    idx,
		FullName: name,
		Type:     typ,
		Default:  def,
		Pin:      PinFromName(name),
	}
}

// PinFromName returns the package pin encoded at the end of a Xilinx cell
// name: everything after the last underscore, or the whole name.
func PinFromName(name string) string {
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ParseLayout parses r with the default capacity and no logging.
func ParseLayout(r io.Reader) (*Layout, error) {
	return NewLayoutParser(nil).Parse(r)
}

// ParseLayoutFile parses the file at path with the default capacity and no
// logging.
func ParseLayoutFile(path string) (*Layout, error) {
	return NewLayoutParser(nil).ParseFile(path)
}

// LayoutParser reads layout files one line at a time. Unrecognised lines are
// skipped, so any readable file yields a Layout.
type LayoutParser struct {
	Capacity int
	Logger   *zap.Logger
}

// NewLayoutParser returns a parser with the default capacity.
func NewLayoutParser(logger *zap.Logger) *LayoutParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayoutParser{Capacity: DefaultCapacity, Logger: logger}
}

// ParseFile opens path and parses it.
func (p *LayoutParser) ParseFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bsdl: open %s: %w", path, err)
	}
	defer f.Close()

	layout, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("bsdl: read %s: %w", path, err)
	}
	return layout, nil
}

// Parse reads a layout from r.
func (p *LayoutParser) Parse(r io.Reader) (*Layout, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	layout := NewLayout(p.Capacity)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		decl, bit := ParseLayoutLine(scanner.Text())
		if decl != nil {
			layout.PartName = decl.PartName
			layout.BoundaryLength = decl.Length
			layout.HasHeader = true
			logger.Info("boundary register declared",
				zap.String("part", decl.PartName),
				zap.Int("bits", decl.Length))
		}
		if bit != nil {
			layout.Store(*bit)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return layout, nil
}
