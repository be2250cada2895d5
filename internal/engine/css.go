// internal/engine/css.go
package engine

import (
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/correlate"
	"github.com/xkilldash9x/ui5sel/internal/matcher"
	"github.com/xkilldash9x/ui5sel/internal/registry"
	"github.com/xkilldash9x/ui5sel/internal/selector"
)

// CSS resolves the CSS-like dialect directly against the widget registry.
type CSS struct {
	base
}

// NewCSS creates the CSS dialect engine. A nil runtime behaves like a page
// without the framework.
func NewCSS(rt registry.Runtime, opts ...Option) *CSS {
	return &CSS{base: newBase("css", rt, opts)}
}

func (e *CSS) QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	return e.run(root, sel, func(snap *registry.Snapshot) ([]*html.Node, error) {
		parsed, err := selector.Parse(sel, selector.WithDefaultNamespace(e.opts.defaultNamespace))
		if err != nil {
			return nil, err
		}
		return resolveCSS(root, parsed, snap), nil
	})
}

func (e *CSS) Query(root *html.Node, sel string) (*html.Node, error) {
	return e.first(e.QueryAll(root, sel))
}

// resolveCSS matches sel against the snapshot and keeps the widgets whose
// node is rendered inside scope. :has(...) recurses through the same path
// with the candidate's own node as scope.
func resolveCSS(scope *html.Node, sel *selector.Selector, snap *registry.Snapshot) []*html.Node {
	probe := func(node *html.Node, nested *selector.Selector) bool {
		return len(resolveCSS(node, nested, snap)) > 0
	}
	var out []*html.Node
	for _, w := range matcher.New(snap, probe).MatchAll(sel) {
		if node := correlate.Widget(scope, w); node != nil {
			out = append(out, node)
		}
	}
	return out
}
