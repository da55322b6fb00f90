package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/pagecrawl/internal/config"
	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// newValidateCmd creates the 'validate' subcommand.
func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without fetching anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush
			if err := crawler.Check(cfg.Crawler()); err != nil {
				return err
			}
			renderSummary(cmd, cfg)
			return nil
		},
	}
}

func renderSummary(cmd *cobra.Command, cfg config.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Value"})
	t.AppendRows([]table.Row{
		{"base", cfg.Base},
		{"url_list", fmt.Sprintf("%d entries", len(cfg.URLList))},
		{"url_list_index", cfg.URLListIndex},
		{"title", orDash(cfg.Title)},
		{"content", cfg.Content},
		{"next", orDash(cfg.Next)},
		{"sub", orDash(cfg.Sub)},
		{"encoding", cfg.Encoding},
		{"delay", fmt.Sprintf("%dms + rand(%dms)", cfg.SleepMillis, cfg.RandomSleepMillis)},
		{"output", orDash(cfg.Output)},
	})
	t.Render()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
