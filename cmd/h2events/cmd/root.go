package cmd

import (
	"fmt"
	"os"

	"github.com/h2events/go-sdk/pkg/config"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the global flags and the state set during PersistentPreRunE.
type app struct {
	cfgFile      string
	outputFormat string
	logLevel     string
	nesting      string

	cfg    *config.Config
	logger *logrus.Logger
}

// NewRootCmd builds the h2events command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "h2events",
		Short: "HTTP/2 connection events: build, replay, serve and watch event batches",
		Long: `h2events works with the events an HTTP/2 connection reports while it
processes input: settings diffs, scripted scenarios replayed through a
connection tracker, and an inspector that publishes batches over a websocket.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.h2events/config.yaml)")
	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "", "output format: text, json (default \"text\")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (default \"info\")")
	root.PersistentFlags().StringVar(&a.nesting, "nesting", "", "nesting policy: flatten, nested-only (default \"flatten\")")

	root.AddCommand(
		a.newDiffCmd(),
		a.newReprCmd(),
		a.newReplayCmd(),
		a.newServeCmd(),
		a.newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if a.outputFormat != "" {
		cfg.OutputFormat = a.outputFormat
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.nesting != "" {
		policy, err := events.ParseNestingPolicy(a.nesting)
		if err != nil {
			return err
		}
		cfg.Nesting = policy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	a.cfg = cfg
	a.logger = logger
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
