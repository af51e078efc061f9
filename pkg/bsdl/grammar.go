package bsdl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// vhdlLexer tokenises the VHDL subset used by BSDL. Keywords are matched
// case-insensitively and must precede Ident.
var vhdlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},

	{Name: "KwEntity", Pattern: `(?i)\bENTITY\b`},
	{Name: "KwIs", Pattern: `(?i)\bIS\b`},
	{Name: "KwEnd", Pattern: `(?i)\bEND\b`},
	{Name: "KwGeneric", Pattern: `(?i)\bGENERIC\b`},
	{Name: "KwPort", Pattern: `(?i)\bPORT\b`},
	{Name: "KwUse", Pattern: `(?i)\bUSE\b`},
	{Name: "KwAll", Pattern: `(?i)\bALL\b`},
	{Name: "KwAttribute", Pattern: `(?i)\bATTRIBUTE\b`},
	{Name: "KwOf", Pattern: `(?i)\bOF\b`},
	{Name: "KwConstant", Pattern: `(?i)\bCONSTANT\b`},
	{Name: "KwMode", Pattern: `(?i)\b(INOUT|IN|OUT|BUFFER|LINKAGE)\b`},
	{Name: "KwType", Pattern: `(?i)\b(BIT_VECTOR|BIT|STRING|INTEGER|REAL|BOOLEAN)\b`},

	{Name: "Assign", Pattern: `:=`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Semicolon", Pattern: `;`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Dot", Pattern: `\.`},
	{Name: "Concat", Pattern: `&`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},

	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Real", Pattern: `[-+]?[0-9]+\.[0-9]+([eE][-+]?[0-9]+)?`},
	{Name: "Integer", Pattern: `[-+]?[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_]*`},
	{Name: "Asterisk", Pattern: `\*`},
})

// File is a parsed BSDL file. A file holds a single entity.
type File struct {
	Entity *Entity `@@`
}

// Entity is the `entity NAME is ... end NAME;` block.
type Entity struct {
	Name     string     `KwEntity @Ident KwIs`
	Generics []*Generic `( KwGeneric LParen ( @@ ( Semicolon @@ )* )? RParen Semicolon )?`
	Ports    []*Port    `( KwPort LParen ( @@ ( Semicolon @@ )* Semicolon? )? RParen Semicolon )?`
	Decls    []*Decl    `@@*`
	EndName  string     `KwEnd KwEntity? @Ident? Semicolon`
}

// Decl is one statement in the entity body.
type Decl struct {
	Use       *Use       `  @@`
	Constant  *Constant  `| @@`
	Attribute *Attribute `| @@`
}

// Generic is e.g. `PHYSICAL_PIN_MAP : string := "CSG324"`.
type Generic struct {
	Name    string  `@Ident`
	Type    string  `Colon @( KwType | Ident )`
	Default *string `( Assign @String )?`
}

// Port is e.g. `MGTAVCC_G0 : linkage bit_vector (1 to 4)`.
type Port struct {
	Name  string `@Ident`
	Mode  string `Colon @KwMode`
	Type  string `@( KwType | Ident )`
	Range *Range `@@?`
}

// Range is a vector bound such as `(7 downto 0)`.
type Range struct {
	From int    `LParen @Integer`
	Dir  string `@Ident`
	To   int    `@Integer RParen`
}

// Use is `use STD_1149_1_2001.all;`.
type Use struct {
	Package string `KwUse @Ident Dot`
	Item    string `@( Ident | KwAll ) Semicolon`
}

// Constant is e.g. `constant CSG324 : PIN_MAP_STRING := "..." & "...";`.
type Constant struct {
	Name  string `KwConstant @Ident`
	Type  string `Colon @Ident`
	Value *Expr  `Assign @@ Semicolon`
}

// Attribute is e.g. `attribute INSTRUCTION_LENGTH of XC7A35T : entity is 6;`.
type Attribute struct {
	Name  string `KwAttribute @Ident`
	Of    string `KwOf @Ident`
	Class string `Colon @( KwEntity | KwConstant | Ident )`
	Value *Expr  `KwIs @@ Semicolon`
}

// Expr is a `&` separated sequence of terms.
type Expr struct {
	Terms []*Term `@@ ( Concat @@ )*`
}

// Term is one operand of an expression.
type Term struct {
	String  *string  `  @String`
	Real    *float64 `| @Real`
	Integer *int     `| @Integer`
	Ident   *string  `| @Ident`
	Tuple   []*Expr  `| LParen @@ ( Comma @@ )* RParen`
}

// Text returns the concatenation of all string literals in e, without
// quotes. Non-string terms are skipped.
func (e *Expr) Text() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	for _, t := range e.Terms {
		if t.String != nil {
			b.WriteString(strings.Trim(*t.String, `"`))
		}
	}
	return b.String()
}

// Int returns the value of a single integer expression.
func (e *Expr) Int() (int, bool) {
	if e == nil || len(e.Terms) != 1 || e.Terms[0].Integer == nil {
		return 0, false
	}
	return *e.Terms[0].Integer, true
}

// Attributes returns the attribute statements of the entity in file order.
func (e *Entity) Attributes() []*Attribute {
	var out []*Attribute
	for _, d := range e.Decls {
		if d.Attribute != nil {
			out = append(out, d.Attribute)
		}
	}
	return out
}

// Attribute returns the last attribute named name, compared
// case-insensitively.
func (e *Entity) Attribute(name string) *Attribute {
	var found *Attribute
	for _, a := range e.Attributes() {
		if strings.EqualFold(a.Name, name) {
			found = a
		}
	}
	return found
}

// Parser parses complete BSDL files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser builds the grammar.
func NewParser() (*Parser, error) {
	p, err := participle.Build[File](
		participle.Lexer(vhdlLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("bsdl: build grammar: %w", err)
	}
	return &Parser{parser: p}, nil
}

// Parse parses a file from r.
func (p *Parser) Parse(r io.Reader) (*File, error) {
	f, err := p.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("bsdl: parse: %w", err)
	}
	return f, nil
}

// ParseString parses a file held in memory.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("bsdl: parse: %w", err)
	}
	return f, nil
}

// ParseFile parses the file at path.
func (p *Parser) ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bsdl: open %s: %w", path, err)
	}
	defer fh.Close()

	f, err := p.parser.Parse(path, fh)
	if err != nil {
		return nil, fmt.Errorf("bsdl: parse %s: %w", path, err)
	}
	return f, nil
}
