// -- cmd/query.go --
package cmd

import (
	"fmt"
	"io"

	"github.com/antchfx/htmlquery"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/ui5sel/internal/dom"
	"github.com/xkilldash9x/ui5sel/internal/host"
	"github.com/xkilldash9x/ui5sel/internal/observability"
	"github.com/xkilldash9x/ui5sel/internal/snapshot"
)

// Match is one located node as printed by the query command.
type Match struct {
	ID    string `json:"id"`
	Tag   string `json:"tag"`
	XPath string `json:"xpath"`
}

// QueryResult holds the matches of one selector chain.
type QueryResult struct {
	Selector string  `json:"selector"`
	Matches  []Match `json:"matches"`
}

func newQueryCmd() *cobra.Command {
	var (
		snapshotPath string
		first        bool
		output       string
	)
	cmd := &cobra.Command{
		Use:   "query <selector> [selector...]",
		Short: "Runs selectors against a captured page snapshot",
		Long: `Runs one or more selector chains against a page snapshot and prints every
matching element. A chain is one or more stages joined by ">>", each stage
either "ui5_css=<selector>", "ui5_xpath=<selector>" or a bare CSS selector.`,
		Example: `  ui5sel query --snapshot page.json 'm.Button[text="Accept"]'
  ui5sel query --snapshot page.json 'ui5_css=m.Toolbar >> ui5_xpath=./*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			page, err := snapshot.LoadFile(snapshotPath)
			if err != nil {
				return err
			}
			logger.Debug("Snapshot loaded",
				zap.String("url", page.Snapshot.URL),
				zap.Int("widgets", page.Widgets()),
			)

			selectors, err := host.NewDefault(page, logger, engineOptions(cfg.Engine(), logger)...)
			if err != nil {
				return err
			}

			results, err := runQueries(cmd, selectors, page.Doc, args, first, cfg.Engine().Concurrency)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			writeText(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "page snapshot written by 'ui5sel capture'")
	cmd.Flags().BoolVar(&first, "first", false, "only report the first match of each selector")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().Int("concurrency", 0, "selectors evaluated in parallel (overrides engine.concurrency)")
	cmd.Flags().String("namespace", "", "implicit namespace for CSS type names (overrides engine.default_namespace)")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

// runQueries evaluates every chain in parallel and returns the results in
// argument order. The first failure cancels the remaining work.
func runQueries(cmd *cobra.Command, s *host.Selectors, root *html.Node, chains []string, first bool, limit int) ([]QueryResult, error) {
	results := make([]QueryResult, len(chains))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)

	for i, chain := range chains {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var nodes []*html.Node
			if first {
				n, err := s.LocateFirst(root, chain)
				if err != nil {
					return err
				}
				if n != nil {
					nodes = []*html.Node{n}
				}
			} else {
				var err error
				if nodes, err = s.Locate(root, chain); err != nil {
					return err
				}
			}
			results[i] = QueryResult{Selector: chain, Matches: toMatches(nodes)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func toMatches(nodes []*html.Node) []Match {
	out := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Match{
			ID:    htmlquery.SelectAttr(n, "id"),
			Tag:   n.Data,
			XPath: dom.UniqueXPath(n),
		})
	}
	return out
}

func writeText(w io.Writer, results []QueryResult) {
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# %s (%d)\n", r.Selector, len(r.Matches))
		}
		for _, m := range r.Matches {
			fmt.Fprintf(w, "%s\t%s\n", m.ID, m.XPath)
		}
	}
}

func writeJSON(w io.Writer, results []QueryResult) error {
	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
