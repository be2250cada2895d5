package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ui5sel/internal/engine"
)

func TestXPath_QueryAll(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime(), engine.WithLogger(zaptest.NewLogger(t)))

	tests := []struct {
		selector string
		want     []string
	}{
		{"//sap.m.Button", []string{"accept", "reject", "submit"}},
		{"/root", nil},
		{"/root/*", []string{"content"}},
		{"/root/sap-ui-area/sap.m.Page", []string{"page"}},
		{"//sap.m.Toolbar/*", []string{"accept", "reject"}},
		{"//sap.m.Button[ui5:property(., 'text') = 'Accept']", []string{"accept"}},
		{"//sap.m.Button[not(ui5:property(., 'enabled'))]", []string{"reject"}},
		{"//sap.m.Button[ui5:property(., 'enabled')]", []string{"accept", "submit"}},
		{"//sap.m.Button[ui5:property(., 'busyIndicatorDelay') = 1000]", []string{"accept", "reject"}},
		{"//sap.m.Button[ui5:property(., 'busyIndicatorDelay') > 999.5]", []string{"accept", "reject"}},
		{"//sap.m.Input[ui5:property(., 'tags') = 'a,b']", []string{"name"}},
		{"//sap.m.Input[ui5:property(., 'suggestions')]", nil},
		{"//sap.m.Button[ui5:property(., 'tooltip')]", nil},
		{"//*[ui5:property(., 'doesNotExist')]", nil},
		{"//sap.m.Button[contains(ui5:property(., 'text'), 'ec')]", []string{"reject"}},
		{"//sap.m.Button[@id='accept']/following-sibling::*", []string{"reject"}},
		{"//sap.m.Input/ancestor::sap.m.Page", []string{"page"}},
		{"//*[sap.m.Button]", []string{"toolbar", "form"}},
		{"//*[sap.m.Button][1]", []string{"toolbar"}},
		{"//sap.m.Button | //sap.m.Toolbar", []string{"toolbar", "accept", "reject", "submit"}},
		{"//sap.m.Table", nil},
		{"//other:thing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := e.QueryAll(f.doc, tt.selector)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestXPath_Scoped(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime())
	toolbar := f.node(t, "toolbar")

	tests := []struct {
		selector string
		want     []string
	}{
		{"/sap.m.Button", []string{"accept", "reject"}},
		{"//sap.m.Button", []string{"accept", "reject"}},
		{"sap.m.Button[2]", []string{"reject"}},
		{"./*", []string{"accept", "reject"}},
		{"/root", nil},
		{"following-sibling::*", nil},
		{"ancestor::*", nil},
		{"//sap.m.Input", nil},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := e.QueryAll(toolbar, tt.selector)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got, "results must stay inside the scope")
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestXPath_ScopeWithoutSyntheticCounterpart(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime())

	// <span> inside the accept button is not a widget root.
	span := f.node(t, "accept").FirstChild
	require.NotNil(t, span)

	got, err := e.QueryAll(span, "//sap.m.Button")
	require.NoError(t, err)
	assert.Empty(t, got)

	body := f.node(t, "content").Parent
	got, err = e.QueryAll(body, "//sap.m.Button")
	require.NoError(t, err)
	assert.Equal(t, []string{"accept", "reject", "submit"}, ids(got))
}

func TestXPath_DebugXML(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime())

	for _, sel := range []string{
		"//sap.m.Toolbar[ui5:debug-xml(.)]",
		"ui5:debug-xml(//sap.m.Toolbar)",
	} {
		t.Run(sel, func(t *testing.T) {
			got, err := e.QueryAll(f.doc, sel)
			require.Error(t, err)
			assert.Nil(t, got)

			var engErr *engine.Error
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, engine.KindEvaluationFailure, engErr.Kind)

			var dbg *engine.DebugXMLError
			require.ErrorAs(t, err, &dbg)
			assert.Equal(t, "<sap.m.Toolbar id=\"toolbar\">\n  <sap.m.Button id=\"accept\"/>\n  <sap.m.Button id=\"reject\"/>\n</sap.m.Toolbar>", dbg.Markup)
			assert.Contains(t, err.Error(), "debug-xml function was called. here is the XML element tree:")
			assert.Contains(t, err.Error(), `selector: "`+sel+`"`)
		})
	}

	_, err := e.QueryAll(f.doc, "ui5:debug-xml(/)")
	var dbg *engine.DebugXMLError
	require.ErrorAs(t, err, &dbg)
	assert.Contains(t, dbg.Markup, "<root>")
	assert.Contains(t, dbg.Markup, `<sap-ui-area id="content">`)
}

func TestXPath_Errors(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime())

	tests := []struct {
		selector string
		kind     engine.Kind
		cause    error
	}{
		{`\%(&*)^%*)[asdf`, engine.KindUnsupportedSyntax, engine.ErrInvalidXPath},
		{"//sap.m.Button[", engine.KindUnsupportedSyntax, engine.ErrInvalidXPath},
		{"count(//sap.m.Button)", engine.KindEvaluationFailure, engine.ErrNotNodeSet},
		{"ui5:property(//sap.m.Button, 'text')", engine.KindEvaluationFailure, engine.ErrNotNodeSet},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			_, err := e.QueryAll(f.doc, tt.selector)
			require.Error(t, err)

			var engErr *engine.Error
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, tt.kind, engErr.Kind)
			assert.True(t, errors.Is(err, tt.cause), "got %v", err)
			assert.Contains(t, err.Error(), tt.selector)
		})
	}
}

func TestXPath_UnknownFunctions(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime())

	for _, sel := range []string{"ui5:nope(.)", "//sap.m.Button[ui5:property(.)]", "//*[$missing]"} {
		t.Run(sel, func(t *testing.T) {
			_, err := e.QueryAll(f.doc, sel)
			var engErr *engine.Error
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, engine.KindEvaluationFailure, engErr.Kind)
			assert.Contains(t, err.Error(), sel)
		})
	}
}

func TestXPath_FunctionPrefixOption(t *testing.T) {
	f := newFixture(t)
	e := engine.NewXPath(f.runtime(), engine.WithFunctionPrefix("w"))

	got, err := e.QueryAll(f.doc, "//sap.m.Button[w:property(., 'text') = 'Reject']")
	require.NoError(t, err)
	assert.Equal(t, []string{"reject"}, ids(got))

	_, err = e.QueryAll(f.doc, "//sap.m.Button[ui5:property(., 'text') = 'Reject']")
	require.Error(t, err, "the default prefix is no longer bound")
}
