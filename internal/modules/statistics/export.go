package statistics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/trellis/internal/domain"
)

// csvHeader mirrors the summary-stats layout: identification first, then the
// in-sample block, then the out-of-sample block.
var csvHeader = []string{
	"seed", "state", "symbols",
	"profit_insample", "benchmark_profit_insample", "annualized_sharpe_ratio_insample",
	"alpha_insample", "beta_insample", "r_squared_insample",
	"treynors_ratio_insample", "information_ratio_insample",
	"profit_outsample", "benchmark_profit_outsample", "annualized_sharpe_ratio_outsample",
	"alpha_outsample", "beta_outsample", "r_squared_outsample",
	"treynors_ratio_outsample", "information_ratio_outsample",
	"elapsed_ms", "error",
}

// WriteCSV writes the header and one row per trial, completed or discarded,
// in the order given.
func WriteCSV(w io.Writer, trials []domain.TrialRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, trial := range trials {
		if err := cw.Write(trialRow(trial)); err != nil {
			return fmt.Errorf("failed to write csv row for seed %d: %w", trial.Seed, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendCSV appends one row per trial to the file at path, so successive
// batches accrue into one stats file. The header is written only when the
// file is new or empty.
func AppendCSV(path string, trials []domain.TrialRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat csv file: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	for _, trial := range trials {
		if err := cw.Write(trialRow(trial)); err != nil {
			return fmt.Errorf("failed to write csv row for seed %d: %w", trial.Seed, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func trialRow(t domain.TrialRecord) []string {
	return []string{
		strconv.FormatInt(t.Seed, 10),
		string(t.State),
		formatSymbols(t.Sectors),
		formatFloat(t.InSample.Profit), formatFloat(t.InSample.BenchmarkProfit), formatFloat(t.InSample.Sharpe),
		formatFloat(t.InSample.Regression.Alpha), formatFloat(t.InSample.Regression.Beta), formatFloat(t.InSample.Regression.RSquared),
		formatFloat(t.InSample.Regression.Treynor), formatFloat(t.InSample.Regression.InformationRatio),
		formatFloat(t.OutSample.Profit), formatFloat(t.OutSample.BenchmarkProfit), formatFloat(t.OutSample.Sharpe),
		formatFloat(t.OutSample.Regression.Alpha), formatFloat(t.OutSample.Regression.Beta), formatFloat(t.OutSample.Regression.RSquared),
		formatFloat(t.OutSample.Regression.Treynor), formatFloat(t.OutSample.Regression.InformationRatio),
		strconv.FormatInt(t.ElapsedMS, 10),
		t.Error,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatSymbols renders sector selections as "sector: A B; sector: C D".
func formatSymbols(sectors []domain.SectorSelection) string {
	parts := make([]string, 0, len(sectors))
	for _, sel := range sectors {
		parts = append(parts, sel.Sector+": "+strings.Join(sel.Symbols, " "))
	}
	return strings.Join(parts, "; ")
}
