// Package xdc reads the pin assignments out of Vivado XDC constraint files.
//
// Only two tokens matter: the package pin following PACKAGE_PIN and the port
// expression following get_ports. Everything else in the file (IOSTANDARD,
// timing constraints, Tcl control flow) is ignored line by line, so a
// constraint file never fails to parse once it has been opened.
package xdc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	pinKeyword  = "PACKAGE_PIN"
	portKeyword = "get_ports"
)

// PinMapping ties a package pin to the top-level port driven through it.
type PinMapping struct {
	Pin    string // e.g. "E3"
	Signal string // e.g. "CLK100MHZ", "led[0]"
}

// PinMap is the ordered list of mappings found in a constraint file. Order is
// file order and pins may repeat.
type PinMap struct {
	Mappings []PinMapping
}

// Len reports the number of mappings.
func (m *PinMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Mappings)
}

// Lookup returns the signal for pin. When the pin is assigned more than once
// the last assignment in file order wins.
func (m *PinMap) Lookup(pin string) (string, bool) {
	if m == nil {
		return "", false
	}
	signal, found := "", false
	for _, pm := range m.Mappings {
		if pm.Pin == pin {
			signal, found = pm.Signal, true
		}
	}
	return signal, found
}

// ParseFile opens path and parses it as an XDC file.
func ParseFile(path string) (*PinMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("xdc: open %s: %w", path, err)
	}
	defer f.Close()

	pm, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("xdc: read %s: %w", path, err)
	}
	return pm, nil
}

// Parse reads constraint lines from r. Only read errors are returned.
func Parse(r io.Reader) (*PinMap, error) {
	pm := &PinMap{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if mapping, ok := ParseLine(scanner.Text()); ok {
			pm.Mappings = append(pm.Mappings, mapping)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pm, nil
}

// ParseLine extracts a mapping from a single constraint line. ok is false for
// comments and for lines that lack either the pin or the port token.
func ParseLine(line string) (PinMapping, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, "#") {
		return PinMapping{}, false
	}

	pin, hasPin := pinToken(line)
	signal, hasPort := portToken(line)
	if !hasPin || !hasPort {
		return PinMapping{}, false
	}
	return PinMapping{Pin: pin, Signal: signal}, true
}

// afterKeyword returns the text following keyword and the single separator
// character after it.
func afterKeyword(line, keyword string) (string, bool) {
	idx := strings.Index(line, keyword)
	if idx < 0 {
		return "", false
	}
	start := idx + len(keyword) + 1
	if start > len(line) {
		return "", true
	}
	return line[start:], true
}

func pinToken(line string) (string, bool) {
	rest, ok := afterKeyword(line, pinKeyword)
	if !ok {
		return "", false
	}
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

func portToken(line string) (string, bool) {
	rest, ok := afterKeyword(line, portKeyword)
	if !ok {
		return "", false
	}

	return stripBraces(rest[:portEnd(rest)]), true
}

// portEnd returns the index of the first ']' that closes the get_ports
// command rather than a bus index, or len(s) if there is none.
func portEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return len(s)
}

// stripBraces removes the Tcl list braces around a port name, as in
// "{ led[0] }".
func stripBraces(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "{")
	s = strings.TrimRight(s, "}")
	return strings.TrimSpace(s)
}
