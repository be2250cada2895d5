// internal/vdom/vdom.go
//
// Package vdom builds the synthetic widget-containment tree that the XPath
// dialect is evaluated against. Markup nesting is flattened away: only
// widget roots and UI areas become elements, everything in between is
// transparent.
package vdom

import (
	"fmt"
	"strings"

	"github.com/ChrisTrenkamp/goxpath/tree"
	"github.com/ChrisTrenkamp/goxpath/tree/xmltree"
	"github.com/antchfx/htmlquery"
	"github.com/beevik/etree"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/registry"
)

// Kind classifies a synthetic node.
type Kind int

const (
	KindRoot Kind = iota
	KindWidget
	KindArea
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindWidget:
		return "widget"
	case KindArea:
		return "area"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const (
	// RootName is the element wrapping the whole tree.
	RootName = "root"
	// AreaName is the element emitted for UI areas.
	AreaName = "sap-ui-area"
)

// Markers names the DOM attributes that identify widget roots and UI areas.
type Markers struct {
	Widget string
	Area   string
}

// DefaultMarkers are the attributes the framework renders.
var DefaultMarkers = Markers{Widget: "data-sap-ui", Area: "data-sap-ui-area"}

// Node is one synthetic element. Name is the widget's type name, AreaName
// or RootName.
type Node struct {
	ID       string
	Name     string
	Kind     Kind
	Children []*Node
}

// Tree is the result of Build. It is built per query and never shared.
type Tree struct {
	Root *Node
}

type frame struct {
	dom    *html.Node
	parent *Node
}

// Build walks the element tree under domRoot (domRoot included) and returns
// the synthetic tree. An element whose widget marker is non-empty becomes a
// widget node when its id resolves in snap; an element whose area marker is
// non-empty becomes an area node. The walk uses an explicit stack, so
// arbitrarily deep pages are safe.
func Build(domRoot *html.Node, snap *registry.Snapshot, markers Markers) *Tree {
	root := &Node{Name: RootName, Kind: KindRoot}
	if domRoot == nil {
		return &Tree{Root: root}
	}
	if domRoot.Type == html.DocumentNode {
		domRoot = firstElement(domRoot)
		if domRoot == nil {
			return &Tree{Root: root}
		}
	}

	stack := []frame{{dom: domRoot, parent: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := f.parent
		if n := classify(f.dom, snap, markers); n != nil {
			parent.Children = append(parent.Children, n)
			parent = n
		}

		var kids []*html.Node
		for c := f.dom.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{dom: kids[i], parent: parent})
		}
	}
	return &Tree{Root: root}
}

func classify(el *html.Node, snap *registry.Snapshot, markers Markers) *Node {
	id := htmlquery.SelectAttr(el, "id")
	if markers.Widget != "" && htmlquery.SelectAttr(el, markers.Widget) != "" && snap != nil {
		if w, ok := snap.ByID(id); ok && w.TypeName() != "" {
			return &Node{ID: w.ID(), Name: w.TypeName(), Kind: KindWidget}
		}
	}
	if markers.Area != "" && htmlquery.SelectAttr(el, markers.Area) != "" {
		return &Node{ID: id, Name: AreaName, Kind: KindArea}
	}
	return nil
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Find returns the first node in document order with the given id.
func (t *Tree) Find(id string) *Node {
	var found *Node
	t.Walk(func(n *Node) bool {
		if n.Kind != KindRoot && n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits nodes in document order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil || t.Root == nil {
		return
	}
	stack := []*Node{t.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Count returns the number of nodes of the given kind.
func (t *Tree) Count(kind Kind) int {
	count := 0
	t.Walk(func(n *Node) bool {
		if n.Kind == kind {
			count++
		}
		return true
	})
	return count
}

// Element converts the tree into etree form. Every element but the root
// carries its id attribute.
func (t *Tree) Element() *etree.Element {
	type pending struct {
		node   *Node
		parent *etree.Element
	}
	var top *etree.Element
	stack := []pending{{node: t.Root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var el *etree.Element
		if p.parent == nil {
			el = etree.NewElement(p.node.Name)
			top = el
		} else {
			el = p.parent.CreateElement(p.node.Name)
		}
		if p.node.Kind != KindRoot {
			el.CreateAttr("id", p.node.ID)
		}
		for i := len(p.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, pending{node: p.node.Children[i], parent: el})
		}
	}
	return top
}

// Markup serializes the tree to compact XML.
func (t *Tree) Markup() (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(t.Element())
	return doc.WriteToString()
}

// Document serializes the tree and parses it back into the node model the
// XPath dialect is evaluated against. The returned node is the document root.
func (t *Tree) Document() (tree.Node, error) {
	markup, err := t.Markup()
	if err != nil {
		return nil, fmt.Errorf("serializing synthetic tree: %w", err)
	}
	doc, err := xmltree.ParseXML(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing synthetic tree: %w", err)
	}
	return doc, nil
}
