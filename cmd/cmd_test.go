// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ui5sel/api/schemas"
	"github.com/xkilldash9x/ui5sel/internal/config"
	"github.com/xkilldash9x/ui5sel/internal/snapshot"
)

var testPage = &schemas.PageSnapshot{
	URL:        "https://example.test/app",
	CapturedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	Runtime: schemas.RuntimeInfo{
		Available: true,
		Version:   "1.120.0",
		Widgets: []schemas.WidgetRecord{
			{ID: "bar", Type: "sap.m.Toolbar"},
			{ID: "ok", Type: "sap.m.Button", Properties: map[string]any{"text": "OK"}},
			{ID: "cancel", Type: "sap.m.Button", Properties: map[string]any{"text": "Cancel"}},
		},
	},
	HTML: `<html><body><div id="area" data-sap-ui-area="area"><div id="bar" data-sap-ui="bar">` +
		`<button id="ok" data-sap-ui="ok">OK</button><button id="cancel" data-sap-ui="cancel">Cancel</button>` +
		`</div></div></body></html>`,
}

// resetForTest isolates the package-level state a run touches.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	osExit = os.Exit
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Cleanup(func() {
		cfgFile = ""
		osExit = os.Exit
	})
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.json")
	snap := *testPage
	require.NoError(t, snapshot.SaveFile(path, &snap))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	resetForTest(t)

	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "ui5sel version "+Version)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ui5sel version "+Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)
	out, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "ui5sel locates UI5 controls")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	resetForTest(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  concurrency: 0\n"), 0o600))

	_, err := run(t, "--config", path, "engines")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.concurrency must be a positive integer")
}

func TestEnginesCmd(t *testing.T) {
	resetForTest(t)
	out, err := run(t, "engines")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "ui5 "))
	assert.Regexp(t, `^ui5_css\s+yes\s+`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "ui5_xpath"))
}

func TestQueryCmd_Text(t *testing.T) {
	resetForTest(t)
	snap := writeSnapshot(t)

	out, err := run(t, "query", "--snapshot", snap, "m.Button")
	require.NoError(t, err)
	assert.Equal(t, "ok\t//*[@id='ok']\ncancel\t//*[@id='cancel']\n", out)

	out, err = run(t, "query", "--snapshot", snap, "--first", "ui5_xpath=//sap.m.Button")
	require.NoError(t, err)
	assert.Equal(t, "ok\t//*[@id='ok']\n", out)
}

func TestQueryCmd_MultipleSelectors(t *testing.T) {
	resetForTest(t)
	snap := writeSnapshot(t)

	out, err := run(t, "query", "-s", snap, "--concurrency", "2",
		"m.Button[text='Cancel']",
		"ui5_css=m.Toolbar >> ui5_xpath=./*",
		"m.Table",
	)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"# m.Button[text='Cancel'] (1)",
		"cancel\t//*[@id='cancel']",
		"",
		"# ui5_css=m.Toolbar >> ui5_xpath=./* (2)",
		"ok\t//*[@id='ok']",
		"cancel\t//*[@id='cancel']",
		"",
		"# m.Table (0)",
		"",
	}, "\n"), out)
}

func TestQueryCmd_JSON(t *testing.T) {
	resetForTest(t)
	snap := writeSnapshot(t)

	out, err := run(t, "query", "-s", snap, "-o", "json", "#ok", "m.Table")
	require.NoError(t, err)

	var results []QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, []QueryResult{
		{Selector: "#ok", Matches: []Match{{ID: "ok", Tag: "button", XPath: "//*[@id='ok']"}}},
		{Selector: "m.Table", Matches: []Match{}},
	}, results)
}

func TestQueryCmd_NamespaceFlag(t *testing.T) {
	resetForTest(t)
	snap := writeSnapshot(t)

	out, err := run(t, "query", "-s", snap, "--namespace", "acme", "m.Button")
	require.NoError(t, err)
	assert.Empty(t, out, "m.Button now means acme.m.Button")
}

func TestQueryCmd_Errors(t *testing.T) {
	resetForTest(t)
	snap := writeSnapshot(t)

	_, err := run(t, "query", "-s", snap, "m.Button m.Input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ui5 selector engine failed on selector: "m.Button m.Input"`)

	_, err = run(t, "query", "m.Button")
	require.Error(t, err, "--snapshot is required")

	_, err = run(t, "query", "-s", filepath.Join(t.TempDir(), "missing.json"), "m.Button")
	require.Error(t, err)

	_, err = run(t, "query", "-s", snap, "-o", "yaml", "m.Button")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

type fakeCapturer struct {
	gotURL string
	err    error
}

func (f *fakeCapturer) Capture(_ context.Context, url string) (*schemas.PageSnapshot, error) {
	f.gotURL = url
	if f.err != nil {
		return nil, f.err
	}
	snap := *testPage
	snap.URL = url
	return &snap, nil
}

func stubCapturer(t *testing.T, fake *fakeCapturer) *config.BrowserConfig {
	t.Helper()
	var seen config.BrowserConfig
	orig := newCapturer
	newCapturer = func(cfg config.BrowserConfig, _ *zap.Logger) pageCapturer {
		seen = cfg
		return fake
	}
	t.Cleanup(func() { newCapturer = orig })
	return &seen
}

func TestCaptureCmd(t *testing.T) {
	resetForTest(t)
	fake := &fakeCapturer{}
	seen := stubCapturer(t, fake)
	out := filepath.Join(t.TempDir(), "captured.json")

	stdout, err := run(t, "capture", "--url", "https://example.test/app?x=1", "--out", out, "--headless=false", "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/app?x=1", fake.gotURL)
	assert.Contains(t, stdout, "captured 3 widgets")
	assert.False(t, seen.Headless)
	assert.Equal(t, 5*time.Second, seen.NavigationTimeout)

	page, err := snapshot.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Widgets())
}

func TestCaptureCmd_Errors(t *testing.T) {
	resetForTest(t)
	fake := &fakeCapturer{err: errors.New("chrome not found")}
	stubCapturer(t, fake)

	_, err := run(t, "capture", "--url", "example.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid url")
	assert.Empty(t, fake.gotURL)

	_, err = run(t, "capture", "--url", "https://example.test", "--out", filepath.Join(t.TempDir(), "x.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestExecute_ExitsOnError(t *testing.T) {
	resetForTest(t)
	var code int
	osExit = func(c int) { code = c }

	// Execute builds its own root command, so the failure comes from args.
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"ui5sel", "query"}
	Execute(context.Background())
	assert.Equal(t, 1, code)
}
