// internal/engine/xpath.go
package engine

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ChrisTrenkamp/goxpath"
	"github.com/ChrisTrenkamp/goxpath/tree"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/correlate"
	"github.com/xkilldash9x/ui5sel/internal/dom"
	"github.com/xkilldash9x/ui5sel/internal/registry"
	"github.com/xkilldash9x/ui5sel/internal/vdom"
)

// XPath resolves XPath selectors against the synthetic widget tree.
type XPath struct {
	base
}

// NewXPath creates the XPath dialect engine. A nil runtime behaves like a
// page without the framework.
func NewXPath(rt registry.Runtime, opts ...Option) *XPath {
	return &XPath{base: newBase("xpath", rt, opts)}
}

func (e *XPath) QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	return e.run(root, sel, func(snap *registry.Snapshot) ([]*html.Node, error) {
		expr, err := goxpath.Parse(scopedSelector(root, sel))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidXPath, err)
		}

		doc, err := vdom.Build(dom.DocumentElement(root), snap, e.opts.markers).Document()
		if err != nil {
			return nil, err
		}

		res, err := expr.Exec(contextNode(root, doc), e.functions(snap))
		if err != nil {
			return nil, err
		}
		matches, ok := res.(tree.NodeSet)
		if !ok {
			return nil, fmt.Errorf("%w: got %q", ErrNotNodeSet, res.String())
		}

		var out []*html.Node
		for _, m := range matches {
			el, ok := m.(tree.Elem)
			if !ok || m.GetNodeType() != tree.NtElem {
				continue
			}
			if node := correlate.ByID(root, tree.GetAttrValOrEmpty(el, "id", "")); node != nil {
				out = append(out, node)
			}
		}
		return out, nil
	})
}

func (e *XPath) Query(root *html.Node, sel string) (*html.Node, error) {
	return e.first(e.QueryAll(root, sel))
}

// functions binds the configured prefix and registers the extension
// functions for one query.
func (e *XPath) functions(snap *registry.Snapshot) goxpath.FuncOpts {
	return func(o *goxpath.Opts) {
		o.NS[e.opts.functionPrefix] = FunctionNamespace
		o.Funcs[xml.Name{Space: FunctionNamespace, Local: "property"}] = tree.Wrap{Fn: propertyFunction(snap), NArgs: 2}
		o.Funcs[xml.Name{Space: FunctionNamespace, Local: "debug-xml"}] = tree.Wrap{Fn: debugXMLFunction, NArgs: 1}
	}
}

// scopedSelector turns an absolute path into a relative one when the query
// is scoped below the document, so nested lookups stay inside their parent.
func scopedSelector(root *html.Node, sel string) string {
	if strings.HasPrefix(sel, "/") && !dom.IsDocument(root) {
		return "." + sel
	}
	return sel
}

// contextNode is the synthetic element standing for root, or the document
// when root has no synthetic counterpart.
func contextNode(root *html.Node, doc tree.Node) tree.Node {
	if !dom.IsDocument(root) {
		if id := htmlquery.SelectAttr(root, "id"); id != "" {
			if el := findByID(doc, id); el != nil {
				return el
			}
		}
	}
	return doc
}

func findByID(doc tree.Node, id string) tree.Elem {
	top, ok := doc.(tree.Elem)
	if !ok {
		return nil
	}
	stack := []tree.Elem{top}
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if el.GetNodeType() == tree.NtElem && tree.GetAttrValOrEmpty(el, "id", "") == id {
			return el
		}
		kids := el.GetChildren()
		for i := len(kids) - 1; i >= 0; i-- {
			if kid, ok := kids[i].(tree.Elem); ok && kids[i].GetNodeType() == tree.NtElem {
				stack = append(stack, kid)
			}
		}
	}
	return nil
}
