// internal/registry/static.go
package registry

import "golang.org/x/net/html"

// StaticWidget is a Widget backed by plain values. It is what snapshots
// replay and what tests use in place of a live runtime.
type StaticWidget struct {
	WidgetID string
	Type     string
	// Supertypes lists the base types, nearest first, excluding Type itself.
	Supertypes []string
	Properties map[string]any
	Node       *html.Node
}

func (w *StaticWidget) ID() string       { return w.WidgetID }
func (w *StaticWidget) TypeName() string { return w.Type }
func (w *StaticWidget) DOMRef() *html.Node {
	return w.Node
}

func (w *StaticWidget) Ancestry() []string {
	chain := make([]string, 0, len(w.Supertypes)+1)
	chain = append(chain, w.Type)
	return append(chain, w.Supertypes...)
}

func (w *StaticWidget) Property(name string) (any, error) {
	v, ok := w.Properties[name]
	if !ok {
		return nil, ErrUndefinedProperty
	}
	return v, nil
}

// StaticRegistry is a fixed, ordered widget list.
type StaticRegistry []Widget

func (r StaticRegistry) All() []Widget {
	out := make([]Widget, len(r))
	copy(out, r)
	return out
}

// Available wraps a registry into a Runtime that reports the framework as
// loaded.
func Available(r Registry) Runtime {
	return RuntimeFunc(func() (Registry, bool) { return r, true })
}
