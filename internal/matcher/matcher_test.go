package matcher_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/internal/matcher"
	"github.com/xkilldash9x/ui5sel/internal/registry"
	"github.com/xkilldash9x/ui5sel/internal/selector"
)

// mockWidget lets a test script property access failures.
type mockWidget struct {
	mock.Mock
}

func (m *mockWidget) ID() string         { return m.Called().String(0) }
func (m *mockWidget) TypeName() string   { return m.Called().String(0) }
func (m *mockWidget) Ancestry() []string { return m.Called().Get(0).([]string) }
func (m *mockWidget) DOMRef() *html.Node {
	n, _ := m.Called().Get(0).(*html.Node)
	return n
}
func (m *mockWidget) Property(name string) (any, error) {
	args := m.Called(name)
	return args.Get(0), args.Error(1)
}

func ids(ws []registry.Widget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID()
	}
	return out
}

func fixture() registry.StaticRegistry {
	return registry.StaticRegistry{
		&registry.StaticWidget{
			WidgetID: "accept", Type: "sap.m.Button",
			Supertypes: []string{"sap.ui.core.Control", "sap.ui.core.Element"},
			Properties: map[string]any{"text": "Accept", "enabled": true, "busy": false, "busyIndicatorDelay": float64(1000)},
		},
		&registry.StaticWidget{
			WidgetID: "reject", Type: "sap.m.Button",
			Supertypes: []string{"sap.ui.core.Control", "sap.ui.core.Element"},
			Properties: map[string]any{"text": "Reject", "enabled": false, "icon": nil},
		},
		&registry.StaticWidget{
			WidgetID: "hbox", Type: "sap.m.HBox",
			Supertypes: []string{"sap.m.FlexBox", "sap.ui.core.Control", "sap.ui.core.Element"},
			Properties: map[string]any{"value": "foo asdf bar"},
		},
		&registry.StaticWidget{
			WidgetID: "input", Type: "sap.m.Input",
			Supertypes: []string{"sap.m.InputBase", "sap.ui.core.Control", "sap.ui.core.Element"},
			Properties: map[string]any{"value": "fooasdfbar", "lang": "en-US"},
		},
	}
}

func match(t *testing.T, text string) []string {
	t.Helper()
	sel, err := selector.Parse(text)
	require.NoError(t, err)
	m := matcher.New(registry.TakeSnapshot(fixture()), nil)
	return ids(m.MatchAll(sel))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		selector string
		want     []string
	}{
		{"*", []string{"accept", "reject", "hbox", "input"}},
		{"sap.m.Button", []string{"accept", "reject"}},
		{"m.Button", []string{"accept", "reject"}},
		{"m.Table", nil},
		{"#reject", []string{"reject"}},
		{"sap.m.Button#hbox", nil},
		{"[text]", []string{"accept", "reject"}},
		{"sap.m.Button[text='Accept']", []string{"accept"}},
		{"sap.m.Button[text^='Acc']", []string{"accept"}},
		{"sap.m.Button[text$='ect']", []string{"reject"}},
		{"sap.m.Button[text*='cce']", []string{"accept"}},
		{"[value~='asdf']", []string{"hbox"}},
		{"[lang|='en']", []string{"input"}},
		{"[enabled='false']", []string{"reject"}},
		{"[busyIndicatorDelay='1000']", []string{"accept"}},
		{"sap.m.Button[text='Accept'][busy='false']", []string{"accept"}},
		{"sap.m.Button[text='Accept'][busy='true']", nil},
		{"[icon]", nil},
		{"sap.m.FlexBox", nil},
		{"sap.m.FlexBox::subclass", []string{"hbox"}},
		{"sap.m.HBox::subclass", []string{"hbox"}},
		{"sap.ui.core.Control::subclass", []string{"accept", "reject", "hbox", "input"}},
		{"sap.m.DateTimeField::subclass", nil},
		{"#accept,m.Button", []string{"accept", "accept", "reject"}},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got := match(t, tt.selector)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_PropertyFailureIsLocal(t *testing.T) {
	broken := &mockWidget{}
	broken.On("ID").Return("broken")
	broken.On("TypeName").Return("sap.m.Button")
	broken.On("Property", "text").Return(nil, errors.New("getProperty exploded"))

	healthy := &registry.StaticWidget{WidgetID: "ok", Type: "sap.m.Button", Properties: map[string]any{"text": "x"}}

	m := matcher.New(registry.TakeSnapshot(registry.StaticRegistry{broken, healthy}), nil)
	got := m.Match(selector.MustParse("m.Button[text]").Rules[0])

	assert.Equal(t, []string{"ok"}, ids(got))
	broken.AssertCalled(t, "Property", "text")
}

func TestMatch_HasDelegatesToProbe(t *testing.T) {
	withNode := &registry.StaticWidget{WidgetID: "toolbar", Type: "sap.m.Toolbar", Node: &html.Node{Type: html.ElementNode, Data: "div"}}
	withoutNode := &registry.StaticWidget{WidgetID: "ghost", Type: "sap.m.Toolbar"}
	snap := registry.TakeSnapshot(registry.StaticRegistry{withNode, withoutNode})

	var probed []*html.Node
	probe := func(scope *html.Node, sel *selector.Selector) bool {
		probed = append(probed, scope)
		return sel.Rules[0].TagName == "sap.m.Button"
	}
	m := matcher.New(snap, probe)

	got := m.Match(selector.MustParse("m.Toolbar:has(m.Button)").Rules[0])
	assert.Equal(t, []string{"toolbar"}, ids(got))
	assert.Equal(t, []*html.Node{withNode.Node}, probed, "widgets without a DOM node are never probed")

	got = m.Match(selector.MustParse("m.Toolbar:has(m.Toolbar)").Rules[0])
	assert.Empty(t, got)

	got = matcher.New(snap, nil).Match(selector.MustParse("m.Toolbar:has(m.Button)").Rules[0])
	assert.Empty(t, got)
}
