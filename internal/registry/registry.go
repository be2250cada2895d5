// internal/registry/registry.go
package registry

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrUndefinedProperty is returned by Widget.Property when the widget does not
// declare the requested property.
var ErrUndefinedProperty = errors.New("property is not defined")

// Widget is a read-only handle to a live control instance. Implementations are
// owned by the framework runtime; the engine never mutates them.
type Widget interface {
	// ID is the stable instance id. It is also the id of the rendered DOM node.
	ID() string
	// TypeName is the most-derived type, e.g. "sap.m.Button".
	TypeName() string
	// Ancestry lists type names from the widget's own type up to the root type.
	Ancestry() []string
	// Property returns the current value of a declared property. An undeclared
	// property yields ErrUndefinedProperty; a nil value is treated as undefined
	// by callers.
	Property(name string) (any, error)
	// DOMRef is the rendered root node, or nil when the widget is not rendered.
	DOMRef() *html.Node
}

// Registry is the runtime's collection of all instantiated widgets.
type Registry interface {
	// All returns the widgets in registry iteration order.
	All() []Widget
}

// Runtime is whatever a page exposes of the framework. Registry reports false
// when the framework is not loaded on the page.
type Runtime interface {
	Registry() (Registry, bool)
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func() (Registry, bool)

func (f RuntimeFunc) Registry() (Registry, bool) { return f() }

// Absent is a Runtime for pages without the framework.
var Absent Runtime = RuntimeFunc(func() (Registry, bool) { return nil, false })

// Snapshot is a per-query copy of the registry contents, indexed by id.
type Snapshot struct {
	widgets []Widget
	byID    map[string]Widget
}

// TakeSnapshot copies the current registry contents. A nil registry (seen
// while a page is still loading) yields an empty snapshot.
func TakeSnapshot(r Registry) *Snapshot {
	s := &Snapshot{byID: make(map[string]Widget)}
	if r == nil {
		return s
	}
	all := r.All()
	s.widgets = make([]Widget, 0, len(all))
	for _, w := range all {
		if w == nil {
			continue
		}
		s.widgets = append(s.widgets, w)
		if _, dup := s.byID[w.ID()]; !dup {
			s.byID[w.ID()] = w
		}
	}
	return s
}

// Widgets returns the snapshot contents in registry order.
func (s *Snapshot) Widgets() []Widget { return s.widgets }

// Len is the number of widgets in the snapshot.
func (s *Snapshot) Len() int { return len(s.widgets) }

// ByID finds a widget by instance id.
func (s *Snapshot) ByID(id string) (Widget, bool) {
	w, ok := s.byID[id]
	return w, ok
}

// Lookup returns the defined value of a property. Undefined properties, nil
// values and failing accessors all collapse into ok == false.
func Lookup(w Widget, name string) (any, bool) {
	v, err := w.Property(name)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Stringify converts a property value to text the way the framework's
// scripting runtime does for String(value).
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return FormatNumber(t)
	case float32:
		return FormatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64:
		return strconv.FormatInt(toInt64(t), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(toUint64(t), 10)
	case interface{ String() string }:
		return t.String()
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if e != nil {
				parts[i] = Stringify(e)
			}
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return "[object Object]"
	}
}

// FormatNumber renders a float with no trailing zeros and no exponent for the
// usual ranges.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	}
	return 0
}

func toUint64(v any) uint64 {
	switch t := v.(type) {
	case uint:
		return uint64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case uint64:
		return t
	}
	return 0
}
