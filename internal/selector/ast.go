// internal/selector/ast.go
package selector

import "strings"

// Operator is an attribute predicate comparison.
type Operator string

const (
	OpExists    Operator = ""   // [name]
	OpEquals    Operator = "="  // [name='v']
	OpPrefix    Operator = "^=" // [name^='v']
	OpSuffix    Operator = "$=" // [name$='v']
	OpSubstring Operator = "*=" // [name*='v']
	OpToken     Operator = "~=" // whitespace separated token
	OpDashMatch Operator = "|=" // exact or followed by '-'
)

// PseudoSubclass is the only supported pseudo-element.
const PseudoSubclass = "subclass"

// PseudoHas is the only supported pseudo-class.
const PseudoHas = "has"

// Wildcard is the universal type selector.
const Wildcard = "*"

// Selector is a comma separated list of rules.
type Selector struct {
	Rules []Rule
}

// Rule is one compound selector: an optional type, an optional id, attribute
// predicates and pseudo selectors, with no combinators.
type Rule struct {
	// TagName is the fully qualified type name, Wildcard, or empty.
	TagName       string
	ID            string
	Attributes    []Attribute
	PseudoElement string
	PseudoClasses []PseudoClass
}

// Attribute is a property predicate.
type Attribute struct {
	Name     string
	Operator Operator
	Value    string
}

// PseudoClass is a functional pseudo-class such as :has(...).
type PseudoClass struct {
	Name     string
	Argument *Selector
}

// HasType reports whether the rule names a concrete type.
func (r Rule) HasType() bool {
	return r.TagName != "" && r.TagName != Wildcard
}

// Subclass reports whether ::subclass was requested.
func (r Rule) Subclass() bool {
	return r.PseudoElement == PseudoSubclass
}

// Match evaluates the operator against an actual property value.
func (a Attribute) Match(actual string) bool {
	switch a.Operator {
	case OpExists:
		return true
	case OpEquals:
		return actual == a.Value
	case OpPrefix:
		return strings.HasPrefix(actual, a.Value)
	case OpSuffix:
		return strings.HasSuffix(actual, a.Value)
	case OpSubstring:
		return strings.Contains(actual, a.Value)
	case OpToken:
		for _, tok := range strings.Fields(actual) {
			if tok == a.Value {
				return true
			}
		}
		return false
	case OpDashMatch:
		return actual == a.Value || strings.HasPrefix(actual, a.Value+"-")
	}
	return false
}

// String renders the selector back into the dialect's syntax.
func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, len(s.Rules))
	for i, r := range s.Rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

func (r Rule) String() string {
	var b strings.Builder
	b.WriteString(r.TagName)
	if r.ID != "" {
		b.WriteByte('#')
		b.WriteString(r.ID)
	}
	for _, a := range r.Attributes {
		b.WriteByte('[')
		b.WriteString(a.Name)
		if a.Operator != OpExists {
			b.WriteString(string(a.Operator))
			b.WriteString(quote(a.Value))
		}
		b.WriteByte(']')
	}
	if r.PseudoElement != "" {
		b.WriteString("::")
		b.WriteString(r.PseudoElement)
	}
	for _, pc := range r.PseudoClasses {
		b.WriteByte(':')
		b.WriteString(pc.Name)
		b.WriteByte('(')
		b.WriteString(pc.Argument.String())
		b.WriteByte(')')
	}
	if b.Len() == 0 {
		return Wildcard
	}
	return b.String()
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
}
