package bibtex

import (
	"fmt"
	"os"
	"strings"

	"github.com/matsen/bibresolve/internal/reference"
)

// ParseError reports malformed BibTeX input.
type ParseError struct {
	Line    int    // 1-indexed line where the problem was detected
	Message string // Description of the error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// commonStrings are the month macros predefined by BibTeX styles.
var commonStrings = map[string]string{
	"jan": "January",
	"feb": "February",
	"mar": "March",
	"apr": "April",
	"may": "May",
	"jun": "June",
	"jul": "July",
	"aug": "August",
	"sep": "September",
	"oct": "October",
	"nov": "November",
	"dec": "December",
}

// ParseFile reads and parses a .bib file.
func ParseFile(path string) ([]reference.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseString(string(data))
}

// ParseString parses BibTeX content into entries, in file order.
//
// Field names and entry types are lowercased; citation keys are kept as
// written. @string definitions and month macros are expanded, "#"
// concatenations are joined, and @comment/@preamble blocks are skipped.
// Text outside of @-blocks is ignored, including stray '@' characters
// that are not followed by a type and an opening delimiter.
func ParseString(content string) ([]reference.Entry, error) {
	p := &parser{src: content, line: 1, macros: make(map[string]string)}
	for k, v := range commonStrings {
		p.macros[k] = v
	}

	var entries []reference.Entry
	for {
		if !p.skipTo('@') {
			return entries, nil
		}
		p.advance() // '@'

		// An '@' not opening a block (an email address in a header, say)
		// is free text, like everything else outside entries.
		entryType := strings.ToLower(p.readIdent())
		if entryType == "" {
			continue
		}
		p.skipSpace()

		closer, ok := p.openDelim()
		if !ok {
			continue
		}

		switch entryType {
		case "comment", "preamble":
			if err := p.skipBlock(closer); err != nil {
				return nil, err
			}
		case "string":
			if err := p.parseStringDef(closer); err != nil {
				return nil, err
			}
		default:
			entry, err := p.parseEntry(entryType, closer)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
}

type parser struct {
	src    string
	pos    int
	line   int
	macros map[string]string
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return ParseError{Line: p.line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

func (p *parser) skipTo(c byte) bool {
	for !p.eof() {
		if p.peek() == c {
			return true
		}
		p.advance()
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.advance()
	}
}

func (p *parser) openDelim() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	switch p.peek() {
	case '{':
		p.advance()
		return '}', true
	case '(':
		p.advance()
		return ')', true
	}
	return 0, false
}

// readIdent reads a type, field or macro name.
func (p *parser) readIdent() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos]
}

// skipBlock skips to the matching closer, honoring nested braces.
func (p *parser) skipBlock(closer byte) error {
	startLine := p.line
	depth := 0
	for !p.eof() {
		c := p.advance()
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closer && depth == 0:
			return nil
		}
	}
	return ParseError{Line: startLine, Message: "unterminated block"}
}

func (p *parser) parseStringDef(closer byte) error {
	p.skipSpace()
	name := strings.ToLower(p.readIdent())
	if name == "" {
		return p.errorf("expected macro name in @string")
	}
	p.skipSpace()
	if p.eof() || p.peek() != '=' {
		return p.errorf("expected '=' after @string name %q", name)
	}
	p.advance()
	value, err := p.parseValue(closer)
	if err != nil {
		return err
	}
	p.skipSpace()
	if p.eof() || p.peek() != closer {
		return p.errorf("expected %q to close @string", closer)
	}
	p.advance()
	p.macros[name] = value
	return nil
}

func (p *parser) parseEntry(entryType string, closer byte) (reference.Entry, error) {
	startLine := p.line
	p.skipSpace()

	keyStart := p.pos
	for !p.eof() && p.peek() != ',' && p.peek() != closer && !isSpace(p.peek()) {
		p.advance()
	}
	key := p.src[keyStart:p.pos]
	if key == "" {
		return reference.Entry{}, ParseError{Line: startLine, Message: fmt.Sprintf("@%s entry has no citation key", entryType)}
	}

	entry := reference.New(entryType, key)
	p.skipSpace()
	if p.eof() {
		return entry, ParseError{Line: startLine, Message: fmt.Sprintf("unterminated entry %q", key)}
	}
	if p.peek() == closer {
		p.advance()
		return entry, nil
	}
	if p.peek() != ',' {
		return entry, p.errorf("expected ',' after citation key %q", key)
	}
	p.advance()

	for {
		p.skipSpace()
		if p.eof() {
			return entry, ParseError{Line: startLine, Message: fmt.Sprintf("unterminated entry %q", key)}
		}
		if p.peek() == closer {
			p.advance()
			return entry, nil
		}

		name := strings.ToLower(p.readIdent())
		if name == "" {
			return entry, p.errorf("expected field name in entry %q", key)
		}
		p.skipSpace()
		if p.eof() || p.peek() != '=' {
			return entry, p.errorf("expected '=' after field %q in entry %q", name, key)
		}
		p.advance()

		value, err := p.parseValue(closer)
		if err != nil {
			return entry, err
		}
		entry.Fields[name] = value

		p.skipSpace()
		if p.eof() {
			return entry, ParseError{Line: startLine, Message: fmt.Sprintf("unterminated entry %q", key)}
		}
		switch p.peek() {
		case ',':
			p.advance()
		case closer:
			p.advance()
			return entry, nil
		default:
			return entry, p.errorf("expected ',' or %q after field %q in entry %q", closer, name, key)
		}
	}
}

// parseValue reads one field value: braced text, quoted text, a number or a
// macro name, optionally joined with '#'.
func (p *parser) parseValue(closer byte) (string, error) {
	var parts []string
	for {
		p.skipSpace()
		if p.eof() {
			return "", p.errorf("unexpected end of input in field value")
		}

		var part string
		var err error
		switch c := p.peek(); {
		case c == '{':
			p.advance()
			part, err = p.readDelimited('}')
		case c == '"':
			p.advance()
			part, err = p.readDelimited('"')
		case isIdentChar(c):
			word := p.readIdent()
			if v, ok := p.macros[strings.ToLower(word)]; ok {
				part = v
			} else {
				part = word
			}
		default:
			return "", p.errorf("unexpected %q in field value", c)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)

		p.skipSpace()
		if p.eof() || p.peek() != '#' {
			break
		}
		p.advance()
	}
	return collapseSpace(strings.Join(parts, "")), nil
}

// readDelimited reads until the terminator at brace depth zero. The opening
// delimiter has already been consumed; inner braces are kept.
func (p *parser) readDelimited(term byte) (string, error) {
	startLine := p.line
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			p.advance()
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == term && depth == 0:
			value := p.src[start:p.pos]
			p.advance()
			return value, nil
		case c == '}' && depth == 0:
			return "", p.errorf("unbalanced '}' in field value")
		}
		p.advance()
	}
	return "", ParseError{Line: startLine, Message: "unterminated field value"}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c >= 0x80:
		return true
	}
	return strings.IndexByte("_-:.+/'!?&*<>[]|`~^$", c) >= 0
}
