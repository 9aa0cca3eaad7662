// Package yahoo fetches daily price history from Yahoo Finance via the
// go-yfinance library.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/trellis/internal/domain"
)

// Client downloads daily bars with retry and exponential backoff.
type Client struct {
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a Yahoo Finance history client.
func NewClient(maxRetries int, log zerolog.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		maxRetries: maxRetries,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// FetchBars downloads daily OHLCV bars for one symbol and returns those with
// start <= date < end. Yahoo history is requested by period, so the smallest
// period covering the window is fetched and sliced locally.
func (c *Client) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	period := periodFor(start, time.Now())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := c.fetchOnce(symbol, period)
		if err == nil {
			sliced := sliceBars(bars, start, end)
			if len(sliced) == 0 {
				return nil, fmt.Errorf("yahoo returned no daily bars for %s in range: %w", symbol, domain.ErrInsufficientData)
			}
			return sliced, nil
		}
		lastErr = err

		if attempt < c.maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("History download failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("failed to download history for %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

// FetchBarsBatch downloads daily bars for several symbols in one request.
// Per-symbol failures are returned in the error map, not as a batch failure.
func (c *Client) FetchBarsBatch(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, map[string]error, error) {
	if len(symbols) == 0 {
		return map[string][]domain.PriceBar{}, map[string]error{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = periodFor(start, time.Now())
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download batch history: %w", err)
	}

	barsBySymbol := make(map[string][]domain.PriceBar, len(symbols))
	errsBySymbol := make(map[string]error)
	for _, symbol := range symbols {
		if fetchErr, ok := result.Errors[symbol]; ok {
			errsBySymbol[symbol] = fetchErr
			continue
		}
		sliced := sliceBars(convertBars(result.Data[symbol]), start, end)
		if len(sliced) == 0 {
			errsBySymbol[symbol] = fmt.Errorf("no daily bars in range: %w", domain.ErrInsufficientData)
			continue
		}
		barsBySymbol[symbol] = sliced
	}

	return barsBySymbol, errsBySymbol, nil
}

// fetchOnce performs a single ticker history download.
func (c *Client) fetchOnce(symbol, period string) ([]domain.PriceBar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	return convertBars(bars), nil
}

// convertBars maps library bars onto domain bars.
func convertBars(bars []models.Bar) []domain.PriceBar {
	out := make([]domain.PriceBar, 0, len(bars))
	for _, bar := range bars {
		volume := int64(bar.Volume)
		out = append(out, domain.PriceBar{
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjClose,
			Volume:   &volume,
		})
	}
	return out
}

// sliceBars keeps bars with start <= date < end, normalized to UTC midnight.
func sliceBars(bars []domain.PriceBar, start, end time.Time) []domain.PriceBar {
	var out []domain.PriceBar
	for _, bar := range bars {
		day := time.Date(bar.Date.Year(), bar.Date.Month(), bar.Date.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) || !day.Before(end) {
			continue
		}
		bar.Date = day
		out = append(out, bar)
	}
	return out
}

// periodFor picks the smallest Yahoo period string whose lookback covers
// start. Yahoo's history endpoint takes periods, not date ranges.
func periodFor(start, now time.Time) string {
	span := now.Sub(start)
	day := 24 * time.Hour
	switch {
	case span <= 5*day:
		return "5d"
	case span <= 30*day:
		return "1mo"
	case span <= 365*day:
		return "1y"
	case span <= 2*365*day:
		return "2y"
	case span <= 5*365*day:
		return "5y"
	case span <= 10*365*day:
		return "10y"
	default:
		return "max"
	}
}
