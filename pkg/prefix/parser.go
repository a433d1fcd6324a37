// Package prefix detects and tokenizes legacy text-prefixed commands
// ("!config set key x") so they can be routed through the same command tree
// as structured interactions.
package prefix

import (
	"strings"
	"unicode"
)

// DefaultPrefixes are used when a parser is built without explicit prefixes.
var DefaultPrefixes = []string{"!"}

// Invocation is a parsed text command.
type Invocation struct {
	// Prefix is the matched command prefix.
	Prefix string

	// Name is the lowercased command name following the prefix.
	Name string

	// Args are the remaining tokens. Double-quoted spans stay together.
	Args []string

	// Raw is the original message text.
	Raw string
}

// Parser matches message text against a set of command prefixes.
type Parser struct {
	prefixes []string
}

// NewParser creates a parser. Without arguments it uses DefaultPrefixes.
func NewParser(prefixes ...string) *Parser {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultPrefixes...)
	}
	return &Parser{prefixes: cleaned}
}

// Parse returns the command invocation at the start of text, if any.
// Messages that do not begin with a known prefix, or carry a prefix with no
// command name, are not invocations.
func (p *Parser) Parse(text string) (*Invocation, bool) {
	trimmed := strings.TrimSpace(text)
	for _, prefix := range p.prefixes {
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		rest := trimmed[len(prefix):]
		tokens := Tokenize(rest)
		if len(tokens) == 0 {
			return nil, false
		}
		return &Invocation{
			Prefix: prefix,
			Name:   strings.ToLower(tokens[0]),
			Args:   tokens[1:],
			Raw:    text,
		}, true
	}
	return nil, false
}

// Tokenize splits text on whitespace, keeping double-quoted spans as single
// tokens. Quotes do not nest; an unterminated quote runs to the end of text.
func Tokenize(text string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		active  bool
	)
	flush := func() {
		if active {
			tokens = append(tokens, current.String())
			current.Reset()
			active = false
		}
	}
	for _, r := range text {
		switch {
		case r == '"':
			quoted = !quoted
			active = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			active = true
		}
	}
	flush()
	return tokens
}
