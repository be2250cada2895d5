// internal/browser/capture.go
package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ui5sel/api/schemas"
	"github.com/xkilldash9x/ui5sel/internal/config"
)

//go:embed registry_dump.js
var registryDumpScript string

// Capturer freezes live pages into snapshots through a Chrome instance it
// launches per capture.
type Capturer struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewCapturer creates a capturer for the given browser settings.
func NewCapturer(cfg config.BrowserConfig, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{cfg: cfg, logger: logger.Named("capture"), now: time.Now}
}

// AllocatorOptions translates the browser config into chromedp allocator options.
func (c *Capturer) AllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", c.cfg.Headless),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	for _, arg := range c.cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		// chromedp adds the dashes itself.
		key, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			opts = append(opts, chromedp.Flag(key, true))
			continue
		}
		opts = append(opts, chromedp.Flag(key, value))
	}
	return opts
}

// Capture navigates to url, waits for the page to settle and records its
// widget registry together with the document markup.
func (c *Capturer) Capture(ctx context.Context, url string) (*schemas.PageSnapshot, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.AllocatorOptions()...)
	defer cancelAlloc()

	sugar := c.logger.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, c.cfg.NavigationTimeout)
	defer cancelRun()

	var (
		raw    []byte
		markup string
	)
	c.logger.Info("Capturing page", zap.String("url", url))
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleTime),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = evaluate(ctx, registryDumpScript)
			return err
		}),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to capture %s: %w", url, err)
	}

	info, err := DecodeRuntime(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Page captured",
		zap.String("url", url),
		zap.Bool("framework", info.Available),
		zap.String("version", info.Version),
		zap.Int("widgets", len(info.Widgets)),
	)
	return &schemas.PageSnapshot{
		FormatVersion: schemas.SnapshotVersion,
		URL:           url,
		CapturedAt:    c.now().UTC(),
		Runtime:       *info,
		HTML:          "<!DOCTYPE html>" + markup,
	}, nil
}

// evaluate runs an expression in the page and returns its JSON value.
func evaluate(ctx context.Context, expression string) ([]byte, error) {
	res, exc, err := runtime.Evaluate(expression).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate registry script: %w", err)
	}
	if exc != nil {
		return nil, fmt.Errorf("registry script threw: %s", exceptionText(exc))
	}
	if res == nil {
		return nil, errors.New("registry script returned nothing")
	}
	return []byte(res.Value), nil
}

func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}

// DecodeRuntime parses the registry script result.
func DecodeRuntime(raw []byte) (*schemas.RuntimeInfo, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty registry script result")
	}
	var info schemas.RuntimeInfo
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to decode registry script result: %w", err)
	}
	if !info.Available {
		info.Widgets = nil
		info.Loading = false
	}
	if info.Widgets == nil {
		info.Widgets = []schemas.WidgetRecord{}
	}
	return &info, nil
}
