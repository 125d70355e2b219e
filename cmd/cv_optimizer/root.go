package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/config"
	"github.com/jonathan/cv-optimizer/internal/docextract"
	"github.com/jonathan/cv-optimizer/internal/fetch"
	"github.com/jonathan/cv-optimizer/internal/ingestion"
	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/logging"
	"github.com/jonathan/cv-optimizer/internal/observability"
	"github.com/jonathan/cv-optimizer/internal/pipeline"
	"github.com/jonathan/cv-optimizer/internal/types"
)

// rootOptions holds the global flags and the hooks tests replace.
type rootOptions struct {
	configPath string
	verbose    bool

	// newCaller builds the remote client; llm.NewCaller when nil.
	newCaller func(ctx context.Context, cfg *llm.Config, logger *zap.Logger) (llm.Caller, error)
	// logger replaces the logger built from the configuration when set.
	logger *zap.Logger
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	if opts == nil {
		opts = &rootOptions{}
	}

	cmd := &cobra.Command{
		Use:           "cv_optimizer",
		Short:         "CV optimizer command line and HTTP API server",
		Long:          "cv_optimizer extracts CV and job posting text, weighs job keywords and runs CV generation tasks against a remote text-generation endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a JSON config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print progress and human-readable summaries to stderr")

	cmd.AddCommand(
		newExtractDocumentCmd(opts),
		newExtractPostingCmd(opts),
		newKeywordsCmd(opts),
		newProcessCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// app is the wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	printer  *observability.Printer
	closers  []io.Closer
}

// newApp loads the configuration and wires every component.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := opts.logger
	if logger == nil {
		logger, err = logging.New(cfg.LogLevel, opts.verbose)
		if err != nil {
			return nil, err
		}
	}

	wire, err := types.WireSchemaFor(cfg.KeywordLocale)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	newCaller := opts.newCaller
	if newCaller == nil {
		newCaller = func(ctx context.Context, c *llm.Config, l *zap.Logger) (llm.Caller, error) {
			return llm.NewCaller(ctx, c, l)
		}
	}
	remote, err := newCaller(cmd.Context(), remoteConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create text generation client: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if c, ok := remote.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	if opts.verbose {
		a.printer = observability.NewPrinter(cmd.ErrOrStderr())
	}

	caller := llm.NewRetryingCaller(remote, llm.RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialBackoff,
		Multiplier:   2,
	}, logger)

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = cfg.FetchTimeout

	postingOpts := ingestion.Options{
		Registry:           fetch.DefaultRegistry(),
		Fetch:              fetchOpts,
		Caller:             caller,
		SummarizeThreshold: cfg.SummarizeThreshold,
		SummaryInputChars:  cfg.SummaryInputChars,
		Logger:             logger,
	}
	if cfg.UseBrowser {
		postingOpts.Renderer = fetch.NewBrowserRenderer(logger)
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Documents: docextract.New(docextract.WithMaxPages(cfg.MaxPDFPages), docextract.WithLogger(logger)),
		Postings:  ingestion.New(postingOpts),
		Caller:    caller,
		Wire:      wire,
		Logger:    logger,
	})
	return a, nil
}

// remoteConfig maps the application configuration onto the client's.
func remoteConfig(cfg *config.Config) *llm.Config {
	return &llm.Config{
		Provider:       llm.Provider(cfg.Provider),
		APIKey:         cfg.APIKey,
		Endpoint:       cfg.Endpoint,
		Model:          cfg.Model,
		SystemPrompt:   cfg.SystemPrompt,
		MaxPromptChars: cfg.MaxPromptChars,
		Timeout:        cfg.RequestTimeout,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
	}
}

// progress returns a callback that prints pipeline progress in verbose mode.
func (a *app) progress(cmd *cobra.Command) pipeline.ProgressCallback {
	if a.printer == nil {
		return nil
	}
	return func(e pipeline.ProgressEvent) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", e.Step, e.Message)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	_ = a.logger.Sync()
}
