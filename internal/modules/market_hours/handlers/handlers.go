// Package handlers provides HTTP handlers for the trading calendar.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/modules/market_hours"
)

// Handlers serves read-only trading-calendar queries.
type Handlers struct {
	calendar *market_hours.Calendar
	log      zerolog.Logger
}

// New creates trading-calendar handlers.
func New(calendar *market_hours.Calendar, log zerolog.Logger) *Handlers {
	return &Handlers{
		calendar: calendar,
		log:      log.With().Str("handler", "calendar").Logger(),
	}
}

// DayStatusResponse reports whether one date is a NYSE trading day.
type DayStatusResponse struct {
	Date           string `json:"date"`
	TradingDay     bool   `json:"trading_day"`
	NextTradingDay string `json:"next_trading_day"`
}

// TradingDaysResponse counts the trading days in a window.
type TradingDaysResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Count int    `json:"count"`
}

// HandleGetStatus handles GET /api/calendar/status. ?date= (YYYY-MM-DD)
// defaults to today.
func (h *Handlers) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		if date, err = time.Parse("2006-01-02", v); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, DayStatusResponse{
		Date:           date.Format("2006-01-02"),
		TradingDay:     h.calendar.IsTradingDay(date),
		NextTradingDay: h.calendar.NextTradingDay(date).Format("2006-01-02"),
	})
}

// HandleCountTradingDays handles GET /api/calendar/trading-days. The window
// [start, end) is end-exclusive, matching the price store.
func (h *Handlers) HandleCountTradingDays(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
		return
	}
	if !start.Before(end) {
		h.writeError(w, http.StatusBadRequest, "start must precede end")
		return
	}

	h.writeJSON(w, http.StatusOK, TradingDaysResponse{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
		Count: h.calendar.TradingDays(start, end),
	})
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
