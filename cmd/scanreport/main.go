package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dee66/repo-scanner-sub001/core/logging"
	"github.com/Dee66/repo-scanner-sub001/core/projectconfig"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

// cli carries the state of one invocation. Commands record their exit code
// here instead of returning errors so output formatting stays in one place.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool

	config   projectconfig.Config
	logger   *zap.Logger
	exitCode int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, arguments []string, stdout io.Writer, stderr io.Writer) int {
	state := &cli{stdout: stdout, stderr: stderr}
	root := newRootCommand(state)
	root.SetArgs(arguments)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if state.jsonOutput {
			return writeJSONOutput(stdout, struct {
				OK bool `json:"ok"`
				errorFields
			}{errorFields: errorFields{Error: err.Error()}}, exitInvalidInput)
		}
		return writeTextError(stderr, "scanreport", err, exitInvalidInput)
	}
	if state.logger != nil {
		_ = state.logger.Sync()
	}
	return state.exitCode
}

func newRootCommand(state *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "scanreport",
		Short:         "Evidence-first deterministic report engine for repository scans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&state.configPath, "config", projectconfig.DefaultPath, "project config path")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&state.logFormat, "log-format", "", "log format: console or json")
	root.PersistentFlags().BoolVar(&state.jsonOutput, "json", false, "emit JSON output")

	root.AddCommand(
		newReportCommand(state),
		newValidateCommand(state),
		newHashCommand(state),
		newDoctorCommand(state),
		newVersionCommand(state),
	)
	return root
}

// setup loads the project config and builds the logger. Flags override
// config values.
func (state *cli) setup(cmd *cobra.Command) error {
	allowMissing := !cmd.Flags().Changed("config")
	configuration, err := projectconfig.Load(state.configPath, allowMissing)
	if err != nil {
		return err
	}
	state.config = configuration

	level := configuration.Logging.Level
	if cmd.Flags().Changed("log-level") || level == "" {
		level = state.logLevel
	}
	format := configuration.Logging.Format
	if cmd.Flags().Changed("log-format") || format == "" {
		format = state.logFormat
	}
	logger, err := logging.New(level, format)
	if err != nil {
		return err
	}
	state.logger = logger
	return nil
}

func newVersionCommand(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if state.jsonOutput {
				state.exitCode = writeJSONOutput(state.stdout, struct {
					OK      bool   `json:"ok"`
					Version string `json:"version"`
				}{OK: true, Version: version}, exitOK)
				return nil
			}
			_, _ = fmt.Fprintln(state.stdout, "scanreport", version)
			return nil
		},
	}
}
