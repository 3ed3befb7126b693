package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/lyricsmith/internal/config"
	"github.com/raaihank/lyricsmith/internal/etl"
	"github.com/raaihank/lyricsmith/internal/logger"
	"github.com/raaihank/lyricsmith/internal/rules"
	"github.com/raaihank/lyricsmith/internal/rulestore"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Configuration file path")
		inputFile    = flag.String("input", "", "Input corpus file (CSV, Parquet, or JSON)")
		outputFile   = flag.String("output", "", "Output file (defaults to <input>.corrected.<ext>)")
		batchSize    = flag.Int("batch-size", 1000, "Batch size for processing")
		workers      = flag.Int("workers", 4, "Number of worker goroutines")
		numberToText = flag.Bool("number-to-text", false, "Convert numbers to words")
		dashType     = flag.String("dash-type", "em", "Dash type for dash fixes (em or en)")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input corpus.csv --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input corpus.parquet --workers 8 --number-to-text\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting lyricsmith ETL pipeline",
		zap.String("version", "0.1.0"),
		zap.String("input", *inputFile))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

	out := *outputFile
	if out == "" {
		out = defaultOutputPath(*inputFile)
	}

	settings := cfg.Editor.Defaults
	settings.NumberToText = *numberToText
	settings.DashType = *dashType

	etlConfig := etl.DefaultConfig()
	etlConfig.BatchSize = *batchSize
	etlConfig.WorkerCount = *workers
	etlConfig.Settings = settings

	userRules := loadUserRules(cfg, log)

	pipeline := etl.NewPipeline(userRules, etlConfig, log.Logger)
	result, err := pipeline.ProcessFile(ctx, *inputFile, out)
	if err != nil {
		log.Fatal("ETL processing failed", zap.Error(err))
	}

	log.Info("Corpus processing completed",
		zap.String("input", *inputFile),
		zap.String("output", out),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("changed", result.Changed),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("correction_time", result.CorrectionTime),
		zap.Duration("write_time", result.WriteTime),
		zap.Float64("records_per_second", float64(result.TotalRecords)/result.Duration.Seconds()))

	if len(result.Errors) > 0 {
		log.Warn("Processing completed with errors", zap.Strings("errors", result.Errors))
	}
}

// loadUserRules pulls the persisted rule state when a database is configured;
// a batch run without one uses built-ins only.
func loadUserRules(cfg *config.Config, log *logger.Logger) []rules.Rule {
	if cfg.Database.DatabaseURL == "" {
		return nil
	}
	pg, err := rulestore.NewPostgresStore(&cfg.Database, log.WithComponent("rulestore").Logger)
	if err != nil {
		log.Warn("Rule store unavailable, using built-ins only", zap.Error(err))
		return nil
	}
	defer pg.Close()

	state, err := pg.Load(context.Background(), "default")
	if err != nil {
		log.Warn("Failed to load rule state, using built-ins only", zap.Error(err))
		return nil
	}
	store := rulestore.New(log.WithComponent("rulestore").Logger)
	store.LoadState(state)
	return store.EnabledRules()
}

// defaultOutputPath inserts ".corrected" before the input extension.
func defaultOutputPath(input string) string {
	if i := strings.LastIndex(input, "."); i > 0 {
		return input[:i] + ".corrected" + input[i:]
	}
	return input + ".corrected"
}
