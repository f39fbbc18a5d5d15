package main

import (
	"fmt"

	"mfcs/internal/config"
	"mfcs/internal/logging"
	"mfcs/pkg/parser"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// cli carries state shared by all subcommands, populated in setup.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	cfg       *config.Config
	log       logging.Logger
	parserLog logging.Logger
	renderer  *MarkdownRenderer
}

// NewRootCommand builds the mfcs command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "mfcs",
		Short: "Extract function calls from streaming model output",
		Long: `mfcs parses model output that carries function-call envelopes
(<mfcs_call> and <mfcs_memory> tags) mixed into regular text. It separates
clean display content from structured call records, works on arbitrarily
fragmented streams, and never loses a byte of input.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default mfcs.yaml in $HOME or .)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newParseCommand(c))
	rootCmd.AddCommand(newCheckCommand(c))
	rootCmd.AddCommand(newReplCommand(c))
	rootCmd.AddCommand(newPromptCommand(c))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// setup loads config, applies flag overrides and prepares shared state.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if c.noColor {
		cfg.Output.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	if !cfg.Output.Color {
		color.NoColor = true
	}

	logCfg := logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format}
	c.log = logging.New(logCfg)
	c.parserLog = logging.NewComponent(logCfg, "parser")

	renderer, err := NewMarkdownRenderer()
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	c.renderer = renderer

	return nil
}

// sessionOptions translates config into parser options.
func (c *cli) sessionOptions(extra ...parser.Option) []parser.Option {
	opts := []parser.Option{
		parser.WithDuplicateFieldPolicy(c.cfg.DuplicatePolicy()),
		parser.WithMaxCallBytes(c.cfg.Parser.MaxCallBytes),
		parser.WithLogger(c.parserLog),
	}
	return append(opts, extra...)
}
