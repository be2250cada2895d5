// internal/host/host.go
package host

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/engine"
	"github.com/xkilldash9x/ui5sel/internal/registry"
)

// Names the dialects are registered under by NewDefault.
const (
	CSSEngine   = "ui5_css"
	XPathEngine = "ui5_xpath"
	// LegacyEngine is the old name for the CSS dialect.
	LegacyEngine = "ui5"
)

var (
	ErrInvalidName       = errors.New("invalid selector engine name")
	ErrAlreadyRegistered = errors.New("selector engine already registered")
	ErrUnknownEngine     = errors.New("unknown selector engine")
	ErrInvalidChain      = errors.New("invalid selector chain")
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Registration describes one registered engine.
type Registration struct {
	Name        string
	Description string
	Default     bool
}

type entry struct {
	reg    Registration
	engine engine.SelectorEngine
}

// Selectors routes chained selectors to named engines. Engines are normally
// registered once at start-up; Locate is safe for concurrent use.
type Selectors struct {
	mu          sync.RWMutex
	engines     map[string]entry
	defaultName string
	logger      *zap.Logger
}

// New creates an empty engine set. Stages without an explicit engine name
// resolve with defaultName.
func New(logger *zap.Logger, defaultName string) *Selectors {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selectors{
		engines:     make(map[string]entry),
		defaultName: defaultName,
		logger:      logger.Named("selectors"),
	}
}

// NewDefault registers both dialects over the same runtime, with the CSS
// dialect as the default and under its legacy name.
func NewDefault(rt registry.Runtime, logger *zap.Logger, opts ...engine.Option) (*Selectors, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	css := engine.NewCSS(rt, opts...)

	s := New(logger, CSSEngine)
	for _, r := range []struct {
		reg Registration
		eng engine.SelectorEngine
	}{
		{Registration{Name: CSSEngine, Description: "CSS-like selectors matched against the widget registry"}, css},
		{Registration{Name: XPathEngine, Description: "XPath 1.0 over the widget containment tree"}, engine.NewXPath(rt, opts...)},
		{Registration{Name: LegacyEngine, Description: "deprecated alias of " + CSSEngine}, css},
	} {
		if err := s.Register(r.reg, r.eng); err != nil {
			return nil, fmt.Errorf("failed to register default engines: %w", err)
		}
	}
	s.logger.Debug("Default selector engines registered", zap.Int("count", len(s.engines)))
	return s, nil
}

// Register adds an engine under reg.Name.
func (s *Selectors) Register(reg Registration, e engine.SelectorEngine) error {
	if !validName.MatchString(reg.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, reg.Name)
	}
	if e == nil {
		return fmt.Errorf("engine %q is nil", reg.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.engines[reg.Name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, reg.Name)
	}
	reg.Default = reg.Name == s.defaultName
	s.engines[reg.Name] = entry{reg: reg, engine: e}
	return nil
}

// Registrations lists the registered engines sorted by name.
func (s *Selectors) Registrations() []Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Registration, 0, len(s.engines))
	for _, e := range s.engines {
		out = append(out, e.reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Selectors) lookup(name string) (engine.SelectorEngine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return e.engine, nil
}

// Locate resolves a chain such as `ui5_css=m.Toolbar >> ui5_xpath=./*`. Each
// stage runs once per node produced by the previous stage, scoped to that
// node, and the combined result is deduplicated.
func (s *Selectors) Locate(root *html.Node, chain string) ([]*html.Node, error) {
	stages, err := ParseChain(chain)
	if err != nil {
		return nil, err
	}

	current := []*html.Node{root}
	for i, st := range stages {
		name := st.Engine
		if name == "" {
			name = s.defaultName
		}
		e, err := s.lookup(name)
		if err != nil {
			return nil, err
		}

		var next []*html.Node
		seen := make(map[*html.Node]struct{})
		for _, scope := range current {
			found, err := e.QueryAll(scope, st.Body)
			if err != nil {
				return nil, fmt.Errorf("stage %d (%s): %w", i+1, name, err)
			}
			for _, n := range found {
				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}
				next = append(next, n)
			}
		}
		s.logger.Debug("Chain stage resolved",
			zap.Int("stage", i+1),
			zap.String("engine", name),
			zap.Int("scopes", len(current)),
			zap.Int("matches", len(next)),
		)
		if len(next) == 0 {
			return nil, nil
		}
		current = next
	}
	return current, nil
}

// LocateFirst returns the first node Locate would return, or nil.
func (s *Selectors) LocateFirst(root *html.Node, chain string) (*html.Node, error) {
	nodes, err := s.Locate(root, chain)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Stage is one `name=body` part of a chain. Engine is empty when the stage
// did not name one.
type Stage struct {
	Engine string
	Body   string
}

// ParseChain splits a selector chain on `>>` separators that are not inside
// quotes or brackets.
func ParseChain(chain string) ([]Stage, error) {
	var (
		parts []string
		quote rune
		depth int
		start int
	)
	for i, r := range chain {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			if depth > 0 {
				depth--
			}
		case r == '>' && depth == 0 && strings.HasPrefix(chain[i:], ">>") && i >= start:
			parts = append(parts, chain[start:i])
			start = i + 2
		}
	}
	parts = append(parts, chain[start:])

	stages := make([]Stage, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: stage %d of %q is empty", ErrInvalidChain, i+1, chain)
		}
		stages = append(stages, parseStage(p))
	}
	return stages, nil
}

func parseStage(p string) Stage {
	eq := strings.IndexByte(p, '=')
	if eq <= 0 {
		return Stage{Body: p}
	}
	name := strings.TrimSpace(p[:eq])
	if !validName.MatchString(name) {
		return Stage{Body: p}
	}
	return Stage{Engine: name, Body: strings.TrimSpace(p[eq+1:])}
}
