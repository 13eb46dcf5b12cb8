// Package commands implements CLI command handlers for chatfang.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/chatfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/chatfang/pkg/attachments"
	"github.com/Sumatoshi-tech/chatfang/pkg/config"
	"github.com/Sumatoshi-tech/chatfang/pkg/ingest"
	"github.com/Sumatoshi-tech/chatfang/pkg/observability"
	"github.com/Sumatoshi-tech/chatfang/pkg/report"
	"github.com/Sumatoshi-tech/chatfang/pkg/terminal"
	"github.com/Sumatoshi-tech/chatfang/pkg/version"
)

const dotEnvFile = ".env"

// flagKeys maps run flags to the config keys they override.
var flagKeys = map[string]string{
	"source":           "source_dir",
	"export":           "export_dir",
	"images":           "attachments.enabled",
	"workers":          "engine.workers",
	"format":           "report.formats",
	"top-words":        "report.top_words",
	"server-top-words": "report.server_top_words",
	"anonymize":        "report.anonymize",
	"log-format":       "logging.format",
	"metrics-textfile": "observability.metrics_textfile",
}

// RunCommand holds the flags and dependencies of the run command.
type RunCommand struct {
	v          *viper.Viper
	configPath string
	dotEnvPath string
}

// Deps are the collaborators of one run.
type Deps struct {
	Logger  *slog.Logger
	Metrics *observability.EngineMetrics
	// Out receives the text report.
	Out   io.Writer
	RunID string
	// NoColor disables ANSI colors in the text report.
	NoColor bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{
		v:          config.New(),
		dotEnvPath: dotEnvFile,
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Aggregate a directory of channel exports",
		Long: `Import every *.csv channel export in the source directory, aggregate
per-author and server statistics in parallel, and write the selected reports.

Settings come from flags, CHATFANG_* environment variables (a .env file is
loaded first), an optional chatfang.yaml and built-in defaults, in that order.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.configPath, "config", "", "Config file (default: chatfang.yaml in ., ./config or ~/.config/chatfang)")
	cmd.Flags().StringP("source", "s", "", "Directory of channel CSV exports (required)")
	cmd.Flags().StringP("export", "e", "", "Export directory (default: source directory)")
	cmd.Flags().BoolP("images", "i", false, "Download attachments")
	cmd.Flags().IntP("workers", "w", 0, "Number of aggregation workers (0 = use CPU count)")
	cmd.Flags().StringSlice("format", nil, "Report formats: csv, plot, text, json, yaml, snapshot")
	cmd.Flags().Int("top-words", report.DefaultTopWords, "Words per author list and size of the server set they exclude")
	cmd.Flags().Int("server-top-words", report.DefaultServerTopWords, "Words in the server ranking")
	cmd.Flags().Bool("anonymize", false, "Replace author names with Author-A, Author-B, ...")
	cmd.Flags().String("log-format", "text", "Log format: text or json")
	cmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	cmd.Flags().Bool("no-color", false, "Disable colored text output")

	bindFlags(rc.v, cmd.Flags())

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name)) //nolint:errcheck // flag exists.
	}
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	err := config.LoadDotEnv(rc.dotEnvPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(rc.v, rc.configPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()

	providers, err := initObservability(cmd, cfg, runID)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := observability.NewEngineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	noColor, _ := cmd.Flags().GetBool("no-color") //nolint:errcheck // flag exists.

	return Execute(cmd.Context(), cfg, Deps{
		Logger:  providers.Logger,
		Metrics: metrics,
		Out:     cmd.OutOrStdout(),
		RunID:   runID,
		NoColor: noColor,
	})
}

func initObservability(cmd *cobra.Command, cfg *config.Config, runID string) (observability.Providers, error) {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Get().Version
	obs.RunID = runID
	obs.LogWriter = cmd.ErrOrStderr()
	obs.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obs.LogJSON = strings.EqualFold(cfg.Logging.Format, "json")
	obs.Environment = cfg.Observability.Environment
	obs.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obs.OTLPInsecure = cfg.Observability.OTLPInsecure
	obs.MetricsTextfile = cfg.Observability.MetricsTextfile

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose { //nolint:errcheck // persistent flag may be absent.
		obs.LogLevel = slog.LevelDebug
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet { //nolint:errcheck // persistent flag may be absent.
		obs.LogLevel = slog.LevelError
	}

	return observability.Init(obs)
}

// Execute runs one import, aggregate and export cycle. Per-author export and
// download failures are logged and do not fail the run.
func Execute(ctx context.Context, cfg *config.Config, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	formats, err := report.ParseFormats(cfg.Report.Formats)
	if err != nil {
		return err
	}

	start := time.Now()

	corpus, err := ingest.LoadDir(ctx, cfg.SourceDir, logger)
	if err != nil {
		return fmt.Errorf("import %s: %w", cfg.SourceDir, err)
	}

	engine := aggregate.NewEngine(cfg.Engine.Workers, logger, deps.Metrics)

	result, err := engine.Run(ctx, corpus.Messages)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	exporter := &report.Exporter{
		Logger:         logger,
		Metrics:        deps.Metrics,
		Out:            deps.Out,
		Dir:            cfg.ExportDir,
		RunID:          deps.RunID,
		Formats:        formats,
		Terminal:       terminalConfig(deps.NoColor),
		TopWords:       cfg.Report.TopWords,
		ServerTopWords: cfg.Report.ServerTopWords,
		Anonymize:      cfg.Report.Anonymize,
	}

	err = exporter.ExportAll(ctx, result, corpus.Channels)

	switch {
	case errors.Is(err, report.ErrPartialExport):
		logger.WarnContext(ctx, "run: some author reports failed", "error", err)
	case err != nil:
		return fmt.Errorf("export: %w", err)
	}

	if cfg.Attachments.Enabled {
		err = downloadAttachments(ctx, cfg, result, deps.Metrics, logger)
		if err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "run: done",
		"messages", len(corpus.Messages), "authors", len(result.Authors), "elapsed", time.Since(start))

	return nil
}

func downloadAttachments(
	ctx context.Context, cfg *config.Config, result *aggregate.Result,
	metrics *observability.EngineMetrics, logger *slog.Logger,
) error {
	maxSize, err := cfg.Attachments.MaxSizeBytes()
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if cfg.Attachments.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Attachments.RatePerSecond), 1)
	}

	downloader := &attachments.Downloader{
		Logger:      logger,
		Metrics:     metrics,
		Client:      &http.Client{Timeout: cfg.Attachments.Timeout},
		Limiter:     limiter,
		Names:       report.DisplayNames(result.Authors, cfg.Report.Anonymize),
		Dir:         cfg.Attachments.Dir,
		MaxSize:     maxSize,
		Concurrency: cfg.Attachments.Concurrency,
	}

	stats, err := downloader.DownloadAll(ctx, result.Authors)
	if err != nil {
		return err
	}

	if stats.Failed > 0 {
		logger.WarnContext(ctx, "run: some attachments failed", "failed", stats.Failed)
	}

	return nil
}

func terminalConfig(noColor bool) terminal.Config {
	cfg := terminal.NewConfig()
	cfg.NoColor = cfg.NoColor || noColor

	return cfg
}
