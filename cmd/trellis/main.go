// Package main is the trellis batch CLI. It runs batches of randomized,
// hierarchically diversified portfolio trials, persists every trial to the
// results database, prints each batch summary, and optionally appends
// per-trial rows to a stats CSV and archives the results database to S3.
//
// Configuration comes from the environment (.env supported); the -symbols
// flag runs the batch once per symbols-per-sector variant, mirroring the
// overnight sweeps the results database was built for.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/aristath/trellis/internal/config"
	"github.com/aristath/trellis/internal/di"
	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/statistics"
	"github.com/aristath/trellis/pkg/logger"
)

func main() {
	csvPath := flag.String("csv", "", "append per-trial rows to this CSV file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols-per-sector variants, e.g. 5,10,20 (default TRIAL_NUM_SYMBOLS)")
	archiveAfter := flag.Bool("archive", false, "archive the results database after the batches (requires ARCHIVE_ENABLED)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	variants, err := parseVariants(*symbolsFlag, cfg.Experiment.NumSymbols)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -symbols flag")
	}

	// SIGINT aborts the in-flight batch; completed trials stay persisted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.UniverseDB.Close()
	defer container.ResultsDB.Close()
	defer container.HistoryDB.Close()
	defer container.HistoryConn.Close()

	if *archiveAfter && container.Archiver == nil {
		log.Fatal().Msg("-archive requires ARCHIVE_ENABLED=true and S3 settings")
	}

	for _, numSymbols := range variants {
		exp := cfg.Experiment
		exp.NumSymbols = numSymbols

		result, err := container.Runner.RunBatch(ctx, exp)
		if err != nil {
			log.Fatal().Err(err).Int("num_symbols", numSymbols).Msg("Batch failed")
		}

		printSummary(os.Stdout, exp, result.Summary)

		if *csvPath != "" {
			if err := statistics.AppendCSV(*csvPath, result.Trials); err != nil {
				log.Fatal().Err(err).Str("path", *csvPath).Msg("CSV export failed")
			}
			log.Info().Str("path", *csvPath).Int("rows", len(result.Trials)).Msg("Appended trials to stats CSV")
		}

		if ctx.Err() != nil {
			log.Warn().Msg("Interrupted, stopping after current batch")
			break
		}
	}

	if *archiveAfter {
		result, err := container.Archiver.Archive(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Archive failed")
		}
		log.Info().
			Str("stamp", result.Stamp).
			Int("runs", result.Runs).
			Int64("bytes", result.Bytes).
			Msg("Results archived")
	}
}

// parseVariants reads the -symbols flag into symbols-per-sector counts,
// falling back to the configured default when the flag is absent.
func parseVariants(raw string, fallback int) ([]int, error) {
	if raw == "" {
		return []int{fallback}, nil
	}
	parts := strings.Split(raw, ",")
	variants := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("want positive integers, got %q", part)
		}
		variants = append(variants, n)
	}
	return variants, nil
}

// printSummary renders one batch outcome: counts first, then the
// out-vs-in-sample regression and out-of-sample bootstrap CI per metric.
func printSummary(w io.Writer, exp domain.ExperimentConfig, s domain.BatchSummary) {
	fmt.Fprintf(w, "\nRun %s (%s, %d symbols per sector)\n", s.RunID, exp.Name, exp.NumSymbols)
	fmt.Fprintf(w, "  completed: %d  discarded: %d\n", s.Completed, s.Discarded)

	if len(s.DiscardsByStage) > 0 {
		stages := make([]string, 0, len(s.DiscardsByStage))
		for stage := range s.DiscardsByStage {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		for _, stage := range stages {
			fmt.Fprintf(w, "    discarded at %s: %d\n", stage, s.DiscardsByStage[stage])
		}
	}

	printMetric(w, "sharpe", s.Sharpe)
	printMetric(w, "profit", s.Profit)
	printMetric(w, "net profit", s.NetProfit)
}

func printMetric(w io.Writer, name string, m domain.MetricSummary) {
	if m.Error != "" {
		fmt.Fprintf(w, "  %-11s unavailable: %s\n", name, m.Error)
		return
	}
	fmt.Fprintf(w, "  %-11s alpha %.4f  beta %.4f  r2 %.4f  CI [%.4f, %.4f, %.4f]\n",
		name, m.Alpha, m.Beta, m.RSquared, m.CI.Low, m.CI.Median, m.CI.High)
}
