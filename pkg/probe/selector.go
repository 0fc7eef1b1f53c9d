package probe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Selector identifies which physical probe to open: USB vendor and product
// IDs plus an optional serial number.
type Selector struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// String renders the selector in the VID:PID[:Serial] form it is parsed from.
func (s Selector) String() string {
	if s.Serial == "" {
		return fmt.Sprintf("%04x:%04x", s.VendorID, s.ProductID)
	}
	return fmt.Sprintf("%04x:%04x:%s", s.VendorID, s.ProductID, s.Serial)
}

// selectorLexer splits a selector into colon-separated words.
var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Word", Pattern: `[^:\s]+`},
})

type selectorAST struct {
	VendorID  string  `parser:"@Word"`
	ProductID string  `parser:"Colon @Word"`
	Serial    *string `parser:"( Colon @Word )?"`
}

var selectorParser = participle.MustBuild[selectorAST](
	participle.Lexer(selectorLexer),
	participle.Elide("Whitespace"),
)

// ParseSelector parses 'VID:PID' or 'VID:PID:Serial', with VID and PID in
// hexadecimal (an optional 0x prefix is accepted).
func ParseSelector(s string) (Selector, error) {
	ast, err := selectorParser.ParseString("", s)
	if err != nil {
		return Selector{}, fmt.Errorf("invalid probe selector %q (want VID:PID[:Serial]): %w", s, err)
	}

	vid, err := parseHexID(ast.VendorID)
	if err != nil {
		return Selector{}, fmt.Errorf("invalid probe selector %q: vendor id: %w", s, err)
	}
	pid, err := parseHexID(ast.ProductID)
	if err != nil {
		return Selector{}, fmt.Errorf("invalid probe selector %q: product id: %w", s, err)
	}

	sel := Selector{VendorID: vid, ProductID: pid}
	if ast.Serial != nil {
		sel.Serial = *ast.Serial
	}
	return sel, nil
}

func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
