// Package cmd defines and implements the CLI commands for the pagecrawl executable.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/config"
	"github.com/JakeFAU/pagecrawl/internal/logging"
)

const defaultConfigPath = "conf.toml"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	dev        bool
}

// newRootCmd creates the root command and wires its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pagecrawl",
		Short: "Crawl a list of pages and append the extracted text to a file.",
		Long: `pagecrawl walks an ordered list of pages on one site, follows next-page
links and sub-page links chosen by CSS selectors, and appends the title and
content of every page it visits to a single output file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the TOML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "override [log] level (debug, info, warn, error)")
	flags.BoolVar(&opts.dev, "dev", false, "override [log] development")

	cmd.AddCommand(newCrawlCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	return cmd
}

// load reads the config file and builds the logger, applying flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config %q: %w", o.configPath, err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Log.Development = o.dev
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(logging.Options{Development: cfg.Log.Development, Level: level})
	if err != nil {
		return config.Config{}, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "pagecrawl: %v\n", err)
		return 1
	}
	return 0
}
