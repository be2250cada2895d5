// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ui5sel/internal/config"
	"github.com/xkilldash9x/ui5sel/internal/engine"
	"github.com/xkilldash9x/ui5sel/internal/observability"
	"github.com/xkilldash9x/ui5sel/internal/vdom"
)

type contextKey string

const configKey contextKey = "config"

// flagBindings maps config keys to the command flags overriding them.
var flagBindings = map[string]string{
	"engine.concurrency":         "concurrency",
	"engine.default_namespace":   "namespace",
	"browser.headless":           "headless",
	"browser.navigation_timeout": "timeout",
}

var (
	cfgFile string
	// osExit is swapped out in tests.
	osExit = os.Exit
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// from leaking between runs.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ui5sel",
		Short:         "ui5sel locates UI5 controls in web pages by type, id and property.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := config.ConfigureViper(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			for key, name := range flagBindings {
				if f := cmd.Flags().Lookup(name); f != nil {
					if err := v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "ui5sel"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting ui5sel", zap.String("version", Version))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/config.yaml)")
	cmd.SetVersionTemplate(`{{printf "ui5sel version %s\n" .Version}}`)

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newEnginesCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	err := newRootCmd().ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// getConfig returns the configuration stored by the root pre-run.
func getConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// engineOptions maps the engine config onto engine options.
func engineOptions(cfg config.EngineConfig, logger *zap.Logger) []engine.Option {
	return []engine.Option{
		engine.WithLogger(logger),
		engine.WithDefaultNamespace(cfg.DefaultNamespace),
		engine.WithFunctionPrefix(cfg.FunctionPrefix),
		engine.WithMarkers(vdom.Markers{Widget: cfg.WidgetMarker, Area: cfg.AreaMarker}),
	}
}
