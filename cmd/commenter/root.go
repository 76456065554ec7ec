package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hekzory/CommentLLM/internal/commenter"
	"github.com/Hekzory/CommentLLM/internal/config"
	"github.com/Hekzory/CommentLLM/internal/failure"
	"github.com/Hekzory/CommentLLM/internal/logging"
	"github.com/Hekzory/CommentLLM/internal/provider"
	"github.com/Hekzory/CommentLLM/internal/walker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInput        = 2
	exitConfig       = 3
	exitProvider     = 4
	exitMalformed    = 5
	exitPartialBatch = 6
)

// exitCode maps an error from a run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, failure.ErrInput):
		return exitInput
	case errors.Is(err, failure.ErrConfig):
		return exitConfig
	case errors.Is(err, failure.ErrProvider):
		return exitProvider
	case errors.Is(err, failure.ErrMalformedResponse):
		return exitMalformed
	case errors.Is(err, failure.ErrPartialBatch):
		return exitPartialBatch
	default:
		return exitFailure
	}
}

type rootOptions struct {
	configFile string
	target     commenter.Target
	quiet      bool
}

// run executes the command line and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
	}
	return exitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "commenter (--file <path> | --directory <path>)",
		Short: "Add explanatory comments to source files using an LLM",
		Long: `commenter sends source code to a language model and overwrites each file
with the commented version the model returns.

With --file a single file is commented. With --directory every eligible file
under the directory is sent in one request and written back individually.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return failure.Input("args", "", "unexpected arguments %q", args)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComment(cmd, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return failure.New(failure.ErrInput, "flags", "", err)
	})

	flags := cmd.Flags()
	flags.StringVarP(&opts.target.File, "file", "f", "", "Path to a single source file to comment")
	flags.StringVarP(&opts.target.Directory, "directory", "d", "", "Path to a directory whose source files are commented")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable the spinner and the summary")

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&opts.configFile, "config", "c", "", "Path to a configuration file (JSON or YAML)")
	persistent.String("provider", config.DefaultConfig.Provider, "Model provider: gemini, openrouter or ollama")
	persistent.String("model", "", "Model name (defaults depend on the provider)")
	persistent.String("api-key", "", "API key; defaults to GOOGLE_API_KEY or OPENROUTER_API_KEY")
	persistent.String("base-url", "", "Override the provider endpoint")
	persistent.String("instruction-file", config.DefaultInstructionFile, "File holding the system instruction")
	persistent.String("history-file", "", "JSON file of prior conversation turns to send with the request")
	persistent.Bool("save-history", false, "Write the conversation back to --history-file after the run")
	persistent.StringSlice("extensions", walker.DefaultExtensions, "File extensions eligible in directory mode")
	persistent.StringSlice("ignore", walker.DefaultIgnore, "Names or patterns skipped in directory mode")
	persistent.Bool("backup", false, "Keep a .backup copy of each file before overwriting it")
	persistent.Bool("dry-run", false, "Print the commented files instead of writing them")
	persistent.String("theme", config.DefaultConfig.Theme, "Syntax highlighting theme for --dry-run")
	persistent.Duration("timeout", config.DefaultConfig.Timeout, "Timeout for a single model request")
	persistent.String("log-level", config.DefaultConfig.LogLevel, "Log level: debug, info, warn or error")
	persistent.String("log-format", config.DefaultConfig.LogFormat, "Log format: console or json")

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "commenter %s\n", version)
		},
	}
}

func runComment(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) error {
	// Validate before loading config so bad invocations never reach the network
	if err := commenter.ValidateTarget(opts.target); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{File: opts.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return failure.New(failure.ErrConfig, "logging", "", err)
	}
	defer func() { _ = logger.Sync() }()

	instruction, err := cfg.Instruction()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := provider.New(ctx, cfg.ProviderOptions(instruction))
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Debug("configuration loaded",
		zap.String("provider", string(cfg.API())),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)

	if !opts.quiet {
		client = newSpinnerClient(client, stderr, spinnerText(cfg.API()))
	}

	c := commenter.New(client, logger)
	c.Files = &commenter.FileHandler{Backup: cfg.Backup}
	c.Walker = walker.New(walker.NewFilter(cfg.Extensions, cfg.Ignore))
	c.DryRun = cfg.DryRun
	c.Output = stdout
	c.Theme = cfg.Theme

	if cfg.HistoryFile != "" {
		conv, err := provider.LoadConversation(cfg.HistoryFile)
		if err != nil {
			return failure.New(failure.ErrConfig, "history", cfg.HistoryFile, err)
		}
		logger.Debug("history loaded", zap.String("path", cfg.HistoryFile), zap.Int("turns", conv.Len()))
		c.SetConversation(conv)
	}

	start := time.Now()
	report, runErr := c.Run(ctx, opts.target)

	if cfg.SaveHistory && cfg.HistoryFile != "" && c.Conversation().Len() > 0 {
		if err := provider.SaveConversation(cfg.HistoryFile, c.Conversation()); err != nil {
			logger.Error("failed to save history", zap.String("path", cfg.HistoryFile), zap.Error(err))
			if runErr == nil {
				runErr = failure.IO("history", cfg.HistoryFile, err)
			}
		}
	}

	if report != nil && !opts.quiet {
		printSummary(stderr, report, time.Since(start))
	}
	return runErr
}
