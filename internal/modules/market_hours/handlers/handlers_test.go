package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/modules/market_hours"
)

func newTestRouter() chi.Router {
	r := chi.NewRouter()
	New(market_hours.NewCalendar(), zerolog.Nop()).RegisterRoutes(r)
	return r
}

func get(t *testing.T, router chi.Router, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStatusReportsHolidayAndNextSession(t *testing.T) {
	router := newTestRouter()

	rec := get(t, router, "/calendar/status?date=2019-07-04")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DayStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2019-07-04", resp.Date)
	assert.False(t, resp.TradingDay)
	assert.Equal(t, "2019-07-05", resp.NextTradingDay)
}

func TestStatusOnRegularSession(t *testing.T) {
	router := newTestRouter()

	rec := get(t, router, "/calendar/status?date=2019-03-06")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DayStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.TradingDay)
	assert.Equal(t, "2019-03-07", resp.NextTradingDay)
}

func TestStatusRejectsBadDate(t *testing.T) {
	router := newTestRouter()

	rec := get(t, router, "/calendar/status?date=tomorrow")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

func TestTradingDaysCountsWindow(t *testing.T) {
	router := newTestRouter()

	// January 2019: 23 weekdays minus New Year's Day and MLK Day.
	rec := get(t, router, "/calendar/trading-days?start=2019-01-01&end=2019-02-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TradingDaysResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2019-01-01", resp.Start)
	assert.Equal(t, "2019-02-01", resp.End)
	assert.Equal(t, 21, resp.Count)
}

func TestTradingDaysRejectsBadWindows(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		name   string
		target string
		want   string
	}{
		{"missing start", "/calendar/trading-days?end=2019-02-01", "YYYY-MM-DD"},
		{"bad end", "/calendar/trading-days?start=2019-01-01&end=soon", "YYYY-MM-DD"},
		{"inverted window", "/calendar/trading-days?start=2019-02-01&end=2019-01-01", "start must precede end"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, router, tc.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}
