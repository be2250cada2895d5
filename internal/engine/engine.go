// internal/engine/engine.go
package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/registry"
	"github.com/xkilldash9x/ui5sel/internal/selector"
	"github.com/xkilldash9x/ui5sel/internal/vdom"
)

// -- Public contract --

// SelectorEngine is what a browser-automation host calls. QueryAll returns
// matches in dialect order without duplicates; Query returns the first of
// them or nil.
type SelectorEngine interface {
	QueryAll(root *html.Node, selector string) ([]*html.Node, error)
	Query(root *html.Node, selector string) (*html.Node, error)
}

// Kind classifies an engine failure.
type Kind string

const (
	KindUnsupportedSyntax Kind = "UNSUPPORTED_SYNTAX"
	KindEvaluationFailure Kind = "EVALUATION_FAILURE"
)

// Error is the single failure type surfaced by both dialects. The message
// always embeds the selector text verbatim.
type Error struct {
	Selector string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ui5 selector engine failed on selector: \"%s\"\n\n%v", e.Selector, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrInvalidXPath marks XPath selectors that fail to parse.
	ErrInvalidXPath = errors.New("invalid xpath expression")
	// ErrNotNodeSet is returned when an XPath selector evaluates to a
	// string, number or boolean.
	ErrNotNodeSet = errors.New("xpath selector did not evaluate to a node-set")
)

func wrap(sel string, err error) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	kind := KindEvaluationFailure
	if errors.Is(err, selector.ErrUnsupportedSyntax) || errors.Is(err, ErrInvalidXPath) {
		kind = KindUnsupportedSyntax
	}
	return &Error{Selector: sel, Kind: kind, Err: err}
}

// -- Options --

// FunctionNamespace is the namespace URI the XPath extension functions are
// registered under.
const FunctionNamespace = "ui5"

type options struct {
	logger           *zap.Logger
	defaultNamespace string
	functionPrefix   string
	markers          vdom.Markers
}

func defaultOptions() options {
	return options{
		logger:           zap.NewNop(),
		defaultNamespace: selector.DefaultNamespace,
		functionPrefix:   FunctionNamespace,
		markers:          vdom.DefaultMarkers,
	}
}

// Option configures an engine.
type Option func(*options)

// WithLogger sets the logger queries are traced on.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDefaultNamespace changes the prefix inserted before partially
// qualified CSS type names.
func WithDefaultNamespace(ns string) Option {
	return func(o *options) { o.defaultNamespace = ns }
}

// WithFunctionPrefix changes the prefix XPath selectors use for the
// extension functions.
func WithFunctionPrefix(prefix string) Option {
	return func(o *options) { o.functionPrefix = prefix }
}

// WithMarkers changes the DOM attributes that identify widgets and areas.
func WithMarkers(m vdom.Markers) Option {
	return func(o *options) { o.markers = m }
}

// -- Shared query plumbing --

type base struct {
	dialect string
	runtime registry.Runtime
	opts    options
	logger  *zap.Logger
}

func newBase(dialect string, rt registry.Runtime, opts []Option) base {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if rt == nil {
		rt = registry.Absent
	}
	return base{
		dialect: dialect,
		runtime: rt,
		opts:    o,
		logger:  o.logger.Named(dialect + "_engine"),
	}
}

type resolveFunc func(snap *registry.Snapshot) ([]*html.Node, error)

// run applies the availability guard, takes the registry snapshot and turns
// every failure, panics included, into an *Error.
func (b *base) run(root *html.Node, sel string, resolve resolveFunc) (nodes []*html.Node, err error) {
	log := b.logger.With(
		zap.String("query_id", uuid.NewString()),
		zap.String("selector", sel),
	)
	defer func() {
		if r := recover(); r != nil {
			nodes, err = nil, &Error{Selector: sel, Kind: KindEvaluationFailure, Err: fmt.Errorf("panic during evaluation: %v", r)}
		}
		if err != nil {
			log.Debug("Query failed.", zap.Error(err))
		}
	}()

	reg, ok := b.runtime.Registry()
	if !ok {
		log.Debug("Framework runtime not present, returning no matches.")
		return nil, nil
	}
	if root == nil {
		return nil, &Error{Selector: sel, Kind: KindEvaluationFailure, Err: errors.New("no scoping root given")}
	}

	snap := registry.TakeSnapshot(reg)
	found, rerr := resolve(snap)
	if rerr != nil {
		return nil, wrap(sel, rerr)
	}
	nodes = dedupe(found)
	log.Debug("Query resolved.", zap.Int("widgets", snap.Len()), zap.Int("matches", len(nodes)))
	return nodes, nil
}

func (b *base) first(nodes []*html.Node, err error) (*html.Node, error) {
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

func dedupe(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	seen := make(map[*html.Node]struct{}, len(nodes))
	out := nodes[:0:0]
	for _, n := range nodes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
