// Package main runs the timeout-tree analysis over an input file:
// in_tt_analysis<NN>.csv → out_tt_analysis<NN>.csv + RUN_SUMMARY<NN>.md
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/config"
	"tt-analysis/internal/ingestion"
	"tt-analysis/internal/optimizer"
	"tt-analysis/internal/reporting"
	"tt-analysis/internal/storage/setup"
)

var fileNumberPattern = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

// filePaths returns the input, output and summary paths for file number n.
func filePaths(inputDir, outputDir, n string) (input, output, summary string) {
	input = filepath.Join(inputDir, fmt.Sprintf("in_tt_analysis%s.csv", n))
	output = filepath.Join(outputDir, fmt.Sprintf("out_tt_analysis%s.csv", n))
	summary = filepath.Join(outputDir, fmt.Sprintf("RUN_SUMMARY%s.md", n))
	return input, output, summary
}

func main() {
	// Load .env file if exists
	config.LoadEnvFile(".env")

	// Parse flags (env vars as defaults)
	number := flag.String("n", "00", "Input file number: reads in_tt_analysis<n>.csv")
	configPath := flag.String("config", "", "Optional YAML config file")
	inputDir := flag.String("input-dir", ".", "Directory containing the input file")
	outputDir := flag.String("output-dir", "", "Output directory (overrides config output_dir)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	keepGoing := flag.Bool("keep-going", false, "Record failing rows and continue instead of aborting")
	verbose := flag.Bool("verbose", false, "Log every row")
	flag.Parse()

	logger := log.New(os.Stdout, "[analyze] ", log.LstdFlags)

	if !fileNumberPattern.MatchString(*number) {
		logger.Fatalf("invalid -n %q: use letters, digits, '-' or '_'", *number)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg.ApplyOverrides(*postgresDSN, *clickhouseDSN)
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	cfg.KeepGoing = cfg.KeepGoing || *keepGoing
	cfg.Verbose = cfg.Verbose || *verbose

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inputPath, outputPath, summaryPath := filePaths(*inputDir, cfg.OutputDir, *number)

	result, err := run(ctx, cfg, inputPath, outputPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(summaryPath, []byte(reporting.RenderMarkdown(result.Report())), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s: %d rows solved, %d failed\n", result.RunID, len(result.Results), len(result.Failures))
	fmt.Printf("  - %s\n", outputPath)
	fmt.Printf("  - %s\n", summaryPath)

	if len(result.Failures) > 0 {
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg *config.Config, inputPath, outputPath string, logger *log.Logger) (*analysis.RunResult, error) {
	opt, err := optimizer.New(cfg.Optimizer())
	if err != nil {
		return nil, err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	src, err := ingestion.NewCSVSource(in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inputPath, err)
	}

	stores, cleanup, err := setup.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	runner, err := analysis.New(analysis.Options{
		Optimizer: opt,
		Stores:    stores,
		Output:    out,
		KeepGoing: cfg.KeepGoing,
		Verbose:   cfg.Verbose,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Printf("Analyzing %s", inputPath)
	result, err := runner.Run(ctx, filepath.Base(inputPath), src)
	if err != nil {
		return nil, err
	}

	if err := out.Sync(); err != nil {
		return nil, fmt.Errorf("sync output: %w", err)
	}
	return result, nil
}
