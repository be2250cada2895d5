// internal/engine/functions.go
package engine

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ChrisTrenkamp/goxpath"
	"github.com/ChrisTrenkamp/goxpath/tree"
	"github.com/beevik/etree"

	"github.com/xkilldash9x/ui5sel/internal/registry"
)

// DebugXMLError is raised by debug-xml. It carries the synthetic markup of
// the node the function was called on.
type DebugXMLError struct {
	Markup string
}

func (e *DebugXMLError) Error() string {
	return "debug-xml function was called. here is the XML element tree:\n\n" + e.Markup
}

var errNodeArgument = errors.New("first argument must be a node-set")

// propertyFunction implements property(node, name). Missing widgets,
// undefined properties and failing accessors all yield an empty node-set.
func propertyFunction(snap *registry.Snapshot) tree.Fn {
	return func(_ tree.Ctx, args ...tree.Result) (tree.Result, error) {
		nodes, ok := args[0].(tree.NodeSet)
		if !ok {
			return nil, errNodeArgument
		}
		if len(nodes) == 0 {
			return tree.NodeSet{}, nil
		}
		el, ok := nodes[0].(tree.Elem)
		if !ok {
			return tree.NodeSet{}, nil
		}
		w, ok := snap.ByID(tree.GetAttrValOrEmpty(el, "id", ""))
		if !ok {
			return tree.NodeSet{}, nil
		}
		v, ok := registry.Lookup(w, args[1].String())
		if !ok {
			return tree.NodeSet{}, nil
		}
		return propertyValue(v), nil
	}
}

// propertyValue maps a property onto an XPath value: booleans and strings
// keep their type, numbers become numbers and arrays are joined with commas.
func propertyValue(v any) tree.Result {
	switch t := v.(type) {
	case bool:
		return tree.Bool(t)
	case string:
		return tree.String(t)
	case float64:
		return tree.Num(t)
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, err := strconv.ParseFloat(registry.Stringify(t), 64)
		if err != nil {
			return tree.String(registry.Stringify(t))
		}
		return tree.Num(f)
	case []any:
		if len(t) == 0 {
			return tree.NodeSet{}
		}
	case []string:
		if len(t) == 0 {
			return tree.NodeSet{}
		}
	}
	return tree.String(registry.Stringify(v))
}

// debugXMLFunction implements debug-xml(node). It never succeeds.
func debugXMLFunction(_ tree.Ctx, args ...tree.Result) (tree.Result, error) {
	nodes, ok := args[0].(tree.NodeSet)
	if !ok {
		return nil, errNodeArgument
	}
	var markup string
	if len(nodes) > 0 {
		markup = indentedMarkup(nodes[0])
	}
	return nil, &DebugXMLError{Markup: markup}
}

// indentedMarkup serializes n and re-indents it. Non-element nodes fall back
// to their string value.
func indentedMarkup(n tree.Node) string {
	if t := n.GetNodeType(); t != tree.NtElem && t != tree.NtRoot {
		return n.ResValue()
	}
	raw, err := goxpath.MarshalStr(n)
	if err != nil {
		return ""
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return raw
	}
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return raw
	}
	return strings.TrimRight(out, "\n")
}
