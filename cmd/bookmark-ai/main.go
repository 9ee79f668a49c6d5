package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/HRui-wh/Bookmark-AI/internal/aggregator"
	"github.com/HRui-wh/Bookmark-AI/internal/classifier"
	"github.com/HRui-wh/Bookmark-AI/internal/config"
	"github.com/HRui-wh/Bookmark-AI/internal/exporter"
	"github.com/HRui-wh/Bookmark-AI/internal/fetcher"
	"github.com/HRui-wh/Bookmark-AI/internal/metrics"
	"github.com/HRui-wh/Bookmark-AI/internal/parser"
	"github.com/HRui-wh/Bookmark-AI/internal/pipeline"
)

var (
	settingsPath string
	outputFile   string
	apiKeyFlag   string
	workersFlag  int
	metricsAddr  string
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "bookmark-ai [bookmark-file]",
	Short: "Reorganize an exported browser bookmark file with AI classification",
	Long: `bookmark-ai parses an exported browser bookmark file, fetches page
metadata for every entry, classifies each bookmark into a fixed category
set via an AI completion endpoint, and writes a new bookmark file
grouped by category. Entries that fail every attempt end up in an
"Uncategorized" folder; no bookmark is ever dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&settingsPath, "settings", "settings.yaml", "Path to YAML settings file")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output bookmark file (default from settings)")
	rootCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "Classification API key (default $DEEPSEEK_API_KEY)")
	rootCmd.Flags().IntVar(&workersFlag, "workers", 0, "Worker pool width (default from settings)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if debugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	if apiKeyFlag != "" {
		settings.APIKey = apiKeyFlag
	}
	if workersFlag > 0 {
		settings.Workers = workersFlag
	}
	if outputFile != "" {
		settings.OutputFile = outputFile
	}
	if metricsAddr != "" {
		settings.MetricsAddr = metricsAddr
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if settings.MetricsAddr != "" {
		metricsSrv = metrics.Serve(settings.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().Str("input", args[0]).Msg("Parsing bookmark file")
	records, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	metrics.BookmarksParsedTotal.Add(float64(len(records)))
	log.Info().Int("bookmarks", len(records)).Msg("Parsed bookmark file")

	categories := settings.CategorySet()

	cls, err := classifier.New(
		settings.APIKey,
		settings.APIBaseURL,
		settings.Model,
		categories,
		settings.Temperature,
		settings.MaxTokens,
	)
	if err != nil {
		return err
	}

	p := pipeline.New(
		fetcher.New(settings.FetchTimeout.Std(), settings.UserAgent),
		cls,
		pipeline.Options{
			Workers:       settings.Workers,
			FetchRetry:    pipeline.RetryPolicy{MaxAttempts: settings.FetchRetry.MaxAttempts, BaseDelay: settings.FetchRetry.BaseDelay.Std()},
			ClassifyRetry: pipeline.RetryPolicy{MaxAttempts: settings.ClassifyRetry.MaxAttempts, BaseDelay: settings.ClassifyRetry.BaseDelay.Std()},
			Cooldown:      settings.Cooldown.Std(),
			ClassifyRate:  settings.ClassifyRate,
		},
	)

	summary := p.Run(ctx, records)
	log.Info().
		Int("total", summary.Total).
		Int("classified", summary.Done).
		Int("fallback", summary.Failed).
		Msg("Pipeline finished")

	groups := aggregator.Group(records)
	for cat, count := range aggregator.Statistics(groups) {
		log.Info().Str("category", string(cat)).Int("bookmarks", count).Msg("Category result")
	}

	if err := exporter.New(categories).WriteFile(settings.OutputFile, groups); err != nil {
		return err
	}

	log.Info().Str("output", settings.OutputFile).Msg("Bookmark organization complete")
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}
