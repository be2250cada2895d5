// internal/correlate/correlate.go
package correlate

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/registry"
)

// Widget maps a resolved widget to its DOM node. The node returned is the
// element found by id inside scope, never the handle's own reference, so a
// stale reference sharing an id with a live element resolves to the live
// one. Detached, unrendered or out-of-scope widgets yield nil.
func Widget(scope *html.Node, w registry.Widget) *html.Node {
	ref := w.DOMRef()
	if ref == nil {
		return nil
	}
	id := htmlquery.SelectAttr(ref, "id")
	if id == "" {
		return nil
	}
	return ByID(scope, id)
}

// ByID returns the first element below scope whose id attribute equals id.
// The scope node itself is not a candidate.
func ByID(scope *html.Node, id string) *html.Node {
	if scope == nil || id == "" {
		return nil
	}
	node, err := htmlquery.Query(scope, fmt.Sprintf(".//*[@id=%s]", Literal(id)))
	if err != nil {
		return nil
	}
	return node
}

// Literal quotes s as an XPath string literal. XPath 1.0 has no escapes, so
// values containing both quote kinds are built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
