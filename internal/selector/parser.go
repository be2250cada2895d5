// internal/selector/parser.go
package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultNamespace is prepended to dotted type names whose first segment is
// not already this namespace, so "m.Button" means "sap.m.Button".
const DefaultNamespace = "sap"

// MaxNesting bounds how deeply :has(...) arguments may nest.
const MaxNesting = 32

// ErrUnsupportedSyntax is matched by every SyntaxError via errors.Is.
var ErrUnsupportedSyntax = errors.New("unsupported selector syntax")

// SyntaxError reports a selector outside the supported grammar. The message
// always quotes the complete selector text.
type SyntaxError struct {
	Selector string
	Offset   int
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("unsupported selector syntax in \"%s\" at offset %d: %s", e.Selector, e.Offset, e.Reason)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrUnsupportedSyntax }

// Option customises parsing.
type Option func(*parser)

// WithDefaultNamespace overrides DefaultNamespace. An empty namespace
// disables the implicit prefix.
func WithDefaultNamespace(ns string) Option {
	return func(p *parser) { p.namespace = ns }
}

// Parse turns selector text into its AST.
func Parse(text string, opts ...Option) (*Selector, error) {
	p := &parser{src: text, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(p)
	}
	if strings.TrimSpace(text) == "" {
		return nil, p.errorf("selector is empty")
	}
	sel, err := p.parseSelector(false)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return sel, nil
}

// MustParse is Parse for selectors known to be valid; it panics otherwise.
func MustParse(text string) *Selector {
	sel, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return sel
}

type parser struct {
	src       string
	pos       int
	depth     int
	namespace string
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Selector: p.src, Offset: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) peekAt(offset int) byte {
	if p.pos+offset >= len(p.src) {
		return 0
	}
	return p.src[p.pos+offset]
}

func (p *parser) skipWhitespace() int {
	start := p.pos
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f':
			p.pos++
		default:
			return p.pos - start
		}
	}
	return p.pos - start
}

// parseSelector reads a comma separated rule list. When nested it stops in
// front of the closing parenthesis of :has(...).
func (p *parser) parseSelector(nested bool) (*Selector, error) {
	sel := &Selector{}
	p.skipWhitespace()
	for {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		sel.Rules = append(sel.Rules, rule)

		skipped := p.skipWhitespace()
		if p.eof() {
			if nested {
				return nil, p.errorf("unterminated :has(")
			}
			return sel, nil
		}
		switch c := p.src[p.pos]; {
		case c == ',':
			p.pos++
			p.skipWhitespace()
			if p.eof() || (nested && p.src[p.pos] == ')') {
				return nil, p.errorf("empty rule after ','")
			}
		case c == ')' && nested:
			return sel, nil
		case c == '>' || c == '+' || c == '~':
			return nil, p.errorf("combinator %q is not supported, chain selectors with >> instead", c)
		case skipped > 0:
			return nil, p.errorf("descendant combinators are not supported, chain selectors with >> instead")
		default:
			return nil, p.errorf("unexpected %q", p.peek())
		}
	}
}

func (p *parser) parseRule() (Rule, error) {
	var r Rule
	start := p.pos

	switch {
	case p.peek() == '*':
		r.TagName = Wildcard
		p.pos++
	case isIdentStart(p.peek()):
		name, err := p.parseTypeName()
		if err != nil {
			return r, err
		}
		r.TagName = name
	}

	for !p.eof() {
		switch p.src[p.pos] {
		case '#':
			p.pos++
			id, err := p.parseIdent(true)
			if err != nil {
				return r, err
			}
			if r.ID != "" {
				return r, p.errorf("multiple ids are not supported")
			}
			r.ID = id
		case '[':
			attr, err := p.parseAttribute()
			if err != nil {
				return r, err
			}
			r.Attributes = append(r.Attributes, attr)
		case ':':
			if p.peekAt(1) == ':' {
				p.pos += 2
				name, err := p.parseIdent(false)
				if err != nil {
					return r, err
				}
				if name != PseudoSubclass {
					return r, p.errorf("pseudo-element ::%s is not supported", name)
				}
				if r.PseudoElement != "" {
					return r, p.errorf("multiple pseudo-elements are not supported")
				}
				r.PseudoElement = name
				continue
			}
			pc, err := p.parsePseudoClass()
			if err != nil {
				return r, err
			}
			r.PseudoClasses = append(r.PseudoClasses, pc)
		case '.':
			return r, p.errorf("class selectors are not supported")
		case '|':
			return r, p.errorf("namespace selectors are not supported")
		default:
			goto done
		}
	}
done:
	if p.pos == start {
		if p.eof() {
			return r, p.errorf("expected a rule")
		}
		return r, p.errorf("unexpected %q", p.peek())
	}
	if r.Subclass() && !r.HasType() {
		return r, p.errorf("subclass pseudo-selector cannot be used without specifying a control type")
	}
	return r, nil
}

// parseTypeName reads a dotted type name and applies the implicit namespace.
func (p *parser) parseTypeName() (string, error) {
	var segments []string
	for {
		seg, err := p.parseIdent(false)
		if err != nil {
			return "", err
		}
		segments = append(segments, seg)
		if p.peekAt(0) != '.' {
			break
		}
		p.pos++
		if !isIdentStart(p.peek()) {
			return "", p.errorf("class selectors are not supported")
		}
	}
	if len(segments) > 1 && p.namespace != "" && segments[0] != p.namespace {
		segments = append([]string{p.namespace}, segments...)
	}
	return strings.Join(segments, "."), nil
}

func (p *parser) parsePseudoClass() (PseudoClass, error) {
	p.pos++ // ':'
	name, err := p.parseIdent(false)
	if err != nil {
		return PseudoClass{}, err
	}
	if name != PseudoHas {
		return PseudoClass{}, p.errorf("pseudo-class :%s is not supported", name)
	}
	if p.peekAt(0) != '(' {
		return PseudoClass{}, p.errorf(":has requires a selector argument")
	}
	p.pos++
	p.depth++
	if p.depth > MaxNesting {
		return PseudoClass{}, p.errorf(":has nesting deeper than %d", MaxNesting)
	}
	p.skipWhitespace()
	if p.peekAt(0) == ')' {
		return PseudoClass{}, p.errorf(":has requires a selector argument")
	}
	arg, err := p.parseSelector(true)
	if err != nil {
		return PseudoClass{}, err
	}
	p.pos++ // ')'
	p.depth--
	return PseudoClass{Name: name, Argument: arg}, nil
}

func (p *parser) parseAttribute() (Attribute, error) {
	p.pos++ // '['
	p.skipWhitespace()
	name, err := p.parseIdent(false)
	if err != nil {
		return Attribute{}, err
	}
	attr := Attribute{Name: name}
	p.skipWhitespace()
	if p.eof() {
		return attr, p.errorf("unterminated attribute selector")
	}
	if p.src[p.pos] == ']' {
		p.pos++
		return attr, nil
	}

	switch op := p.src[p.pos]; op {
	case '=':
		attr.Operator = OpEquals
		p.pos++
	case '^', '$', '*', '~', '|':
		if p.peekAt(1) != '=' {
			return attr, p.errorf("unsupported attribute operator %q", op)
		}
		attr.Operator = Operator(p.src[p.pos : p.pos+2])
		p.pos += 2
	default:
		return attr, p.errorf("unsupported attribute operator %q", op)
	}

	p.skipWhitespace()
	switch p.peek() {
	case '\'', '"':
		attr.Value, err = p.parseString()
	default:
		attr.Value, err = p.parseIdent(true)
	}
	if err != nil {
		return attr, err
	}
	p.skipWhitespace()
	if p.eof() {
		return attr, p.errorf("unterminated attribute selector")
	}
	if p.src[p.pos] != ']' {
		return attr, p.errorf("attribute flags are not supported")
	}
	p.pos++
	return attr, nil
}

func (p *parser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		case '\n':
			return "", p.errorf("newline in string")
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

// parseIdent reads an identifier. leadingDigit allows ids such as "1a".
func (p *parser) parseIdent(leadingDigit bool) (string, error) {
	var b strings.Builder
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		switch {
		case r == '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		case isIdentChar(r) && (p.pos > start || leadingDigit || isIdentStart(r)):
			b.WriteRune(r)
			p.pos += size
		default:
			goto done
		}
	}
done:
	if p.pos == start {
		if p.eof() {
			return "", p.errorf("expected an identifier")
		}
		return "", p.errorf("expected an identifier, got %q", p.peek())
	}
	return b.String(), nil
}

// parseEscape handles a backslash escape: up to six hex digits with an
// optional trailing space, or any other character taken literally.
func (p *parser) parseEscape(b *strings.Builder) error {
	p.pos++ // '\\'
	if p.eof() {
		return p.errorf("dangling escape")
	}
	hexEnd := p.pos
	for hexEnd < len(p.src) && hexEnd-p.pos < 6 && isHex(p.src[hexEnd]) {
		hexEnd++
	}
	if hexEnd > p.pos {
		code, _ := strconv.ParseUint(p.src[p.pos:hexEnd], 16, 32)
		r := rune(code)
		if r == 0 || r > unicode.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
		p.pos = hexEnd
		if !p.eof() && p.src[p.pos] == ' ' {
			p.pos++
		}
		return nil
	}
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	b.WriteRune(r)
	p.pos += size
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '-' || r == '\\' || unicode.IsLetter(r) || r >= utf8.RuneSelf && r != utf8.RuneError
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
