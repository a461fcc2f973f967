// Package style resolves the handful of presentational properties layout
// needs: user-agent defaults per tag plus declarations from the inline
// style attribute.
package style

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	styleLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n\f]+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{4}|[0-9A-Fa-f]{3})\b`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.\d+|\d+|\.\d+)(?:px|em|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"|'(?:\\.|[^'])*'`},
		{Name: "Ident", Pattern: `-?[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[:;,()!/]`},
	})

	declarationParser = participle.MustBuild[Declaration](
		participle.Lexer(styleLexer),
		participle.Elide("Whitespace", "BlockComment"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(2),
	)
)

// Declaration is one `property: value` pair of an inline style.
type Declaration struct {
	Pos       lexer.Position `parser:"" json:"-"`
	Property  string         `parser:"@Ident ':'" json:"property"`
	Values    []*Term        `parser:"@@+" json:"values"`
	Important bool           `parser:"@( '!' 'important' )?" json:"important,omitempty"`
}

// Term is a single component value.
type Term struct {
	Color  *string        `parser:"  @Color" json:"color,omitempty"`
	Number *string        `parser:"| @Number" json:"number,omitempty"`
	String *StringLiteral `parser:"| @String" json:"string,omitempty"`
	Func   *Function      `parser:"| @@" json:"func,omitempty"`
	Ident  *string        `parser:"| @Ident" json:"ident,omitempty"`
	Comma  bool           `parser:"| @','" json:"comma,omitempty"`
	Slash  bool           `parser:"| @'/'" json:"slash,omitempty"`
}

// Function captures calls such as rgb(1, 2, 3).
type Function struct {
	Name string  `parser:"@Ident '('" json:"name"`
	Args []*Term `parser:"@@* ')'" json:"args"`
}

// StringLiteral strips the surrounding quotes on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	v := values[0]
	if len(v) < 2 {
		return fmt.Errorf("string literal %s 不完整", v)
	}
	*s = StringLiteral(v[1 : len(v)-1])
	return nil
}

// ParseDeclarations parses an inline style attribute. Each `;`-separated
// declaration is parsed on its own so one malformed declaration does not
// discard its neighbours; failures are returned as problems.
func ParseDeclarations(input string) ([]*Declaration, []error) {
	var (
		decls    []*Declaration
		problems []error
	)
	for _, chunk := range splitDeclarations(input) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		decl, err := declarationParser.ParseString("", chunk)
		if err != nil {
			problems = append(problems, fmt.Errorf("style: %q: %w", strings.TrimSpace(chunk), err))
			continue
		}
		decl.Property = strings.ToLower(decl.Property)
		decls = append(decls, decl)
	}
	return decls, problems
}

// splitDeclarations splits on semicolons outside quotes and parentheses.
func splitDeclarations(input string) []string {
	var (
		parts []string
		start int
		depth int
		quote rune
	)
	for i, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			parts = append(parts, input[start:i])
			start = i + 1
		}
	}
	return append(parts, input[start:])
}

// Idents returns the lower-cased identifiers among the terms.
func Idents(terms []*Term) []string {
	var out []string
	for _, t := range terms {
		if t.Ident != nil {
			out = append(out, strings.ToLower(*t.Ident))
		}
	}
	return out
}
