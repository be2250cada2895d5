// -- cmd/capture.go --
package cmd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ui5sel/api/schemas"
	"github.com/xkilldash9x/ui5sel/internal/browser"
	"github.com/xkilldash9x/ui5sel/internal/config"
	"github.com/xkilldash9x/ui5sel/internal/observability"
	"github.com/xkilldash9x/ui5sel/internal/snapshot"
)

// pageCapturer is the part of browser.Capturer the capture command needs.
type pageCapturer interface {
	Capture(ctx context.Context, url string) (*schemas.PageSnapshot, error)
}

// newCapturer is swapped out in tests so no browser is launched.
var newCapturer = func(cfg config.BrowserConfig, logger *zap.Logger) pageCapturer {
	return browser.NewCapturer(cfg, logger)
}

func newCaptureCmd() *cobra.Command {
	var (
		target string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Captures a live page into a snapshot for offline queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			u, err := url.Parse(target)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("invalid url %q: an absolute http(s) url is required", target)
			}
			logger := observability.GetLogger()

			snap, err := newCapturer(cfg.Browser(), logger).Capture(cmd.Context(), u.String())
			if err != nil {
				return err
			}
			if !snap.Runtime.Available {
				logger.Warn("No UI5 runtime found on the page; queries against this snapshot return nothing.", zap.String("url", snap.URL))
			}
			if err := snapshot.SaveFile(out, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "captured %d widgets from %s into %s\n", len(snap.Runtime.Widgets), snap.URL, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "url", "u", "", "page to capture")
	cmd.Flags().StringVarP(&out, "out", "o", "snapshot.json", "snapshot file to write")
	cmd.Flags().Bool("headless", true, "run the browser headless (overrides browser.headless)")
	cmd.Flags().Duration("timeout", 0, "navigation timeout (overrides browser.navigation_timeout)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
