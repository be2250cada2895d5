// internal/matcher/matcher.go
package matcher

import (
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/registry"
	"github.com/xkilldash9x/ui5sel/internal/selector"
)

// DescendantProbe reports whether sel matches at least one widget rendered
// inside scope. The engine supplies it so :has(...) reuses correlation.
type DescendantProbe func(scope *html.Node, sel *selector.Selector) bool

// Matcher filters a registry snapshot against CSS dialect rules.
type Matcher struct {
	snapshot *registry.Snapshot
	probe    DescendantProbe
}

// New creates a Matcher. A nil probe makes every :has(...) fail.
func New(snapshot *registry.Snapshot, probe DescendantProbe) *Matcher {
	return &Matcher{snapshot: snapshot, probe: probe}
}

// Match returns the widgets satisfying rule, in registry order.
func (m *Matcher) Match(rule selector.Rule) []registry.Widget {
	var out []registry.Widget
	for _, w := range m.snapshot.Widgets() {
		if m.Accepts(rule, w) {
			out = append(out, w)
		}
	}
	return out
}

// MatchAll evaluates each rule independently and concatenates the results in
// rule order. A widget matched by two rules appears twice.
func (m *Matcher) MatchAll(sel *selector.Selector) []registry.Widget {
	var out []registry.Widget
	for _, rule := range sel.Rules {
		out = append(out, m.Match(rule)...)
	}
	return out
}

// Accepts applies every condition of rule to a single widget.
func (m *Matcher) Accepts(rule selector.Rule, w registry.Widget) bool {
	if !matchesType(rule, w) {
		return false
	}
	if rule.ID != "" && rule.ID != w.ID() {
		return false
	}
	for _, attr := range rule.Attributes {
		if !matchesAttribute(attr, w) {
			return false
		}
	}
	for _, pc := range rule.PseudoClasses {
		if pc.Name != selector.PseudoHas || pc.Argument == nil {
			return false
		}
		node := w.DOMRef()
		if node == nil || m.probe == nil || !m.probe(node, pc.Argument) {
			return false
		}
	}
	return true
}

func matchesType(rule selector.Rule, w registry.Widget) bool {
	if !rule.HasType() {
		return true
	}
	if rule.TagName == w.TypeName() {
		return true
	}
	if !rule.Subclass() {
		return false
	}
	for _, name := range w.Ancestry() {
		if name == rule.TagName {
			return true
		}
	}
	return false
}

// matchesAttribute treats an undefined property and a failing accessor the
// same way: the predicate does not hold.
func matchesAttribute(attr selector.Attribute, w registry.Widget) bool {
	v, ok := registry.Lookup(w, attr.Name)
	if !ok {
		return false
	}
	return attr.Match(registry.Stringify(v))
}
