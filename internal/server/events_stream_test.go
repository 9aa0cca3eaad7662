package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/events"
)

// readDataLine blocks until the next SSE data frame arrives.
func readDataLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestEventsStreamDeliversFilteredEvents(t *testing.T) {
	bus := events.NewBus()
	handler := NewEventsStreamHandler(bus, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?types=RUN_FINISHED,SUMMARY_READY")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)

	// The greeting confirms the subscription is registered, so everything
	// emitted after it must reach this client.
	greeting := readDataLine(t, reader)
	assert.Contains(t, greeting, `"connected"`)

	bus.Emit(events.RunProgress, "trials", map[string]interface{}{"percent": 50.0})
	bus.Emit(events.RunFinished, "trials", map[string]interface{}{"run_id": "run-9"})

	frame := readDataLine(t, reader)
	assert.Contains(t, frame, `"RUN_FINISHED"`)
	assert.Contains(t, frame, `"run-9"`)
	assert.NotContains(t, frame, "RUN_PROGRESS", "filtered types must be dropped")
}

func TestEventsStreamWithoutFilterGetsEverything(t *testing.T) {
	bus := events.NewBus()
	handler := NewEventsStreamHandler(bus, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readDataLine(t, reader) // greeting

	bus.Emit(events.TrialCompleted, "trials", map[string]interface{}{"seed": 3})
	bus.Emit(events.ArchiveUploaded, "archive", map[string]interface{}{"runs": 2})

	assert.Contains(t, readDataLine(t, reader), `"TRIAL_COMPLETED"`)
	assert.Contains(t, readDataLine(t, reader), `"ARCHIVE_UPLOADED"`)
}

func TestEventsStreamRemovesDisconnectedClients(t *testing.T) {
	bus := events.NewBus()
	handler := NewEventsStreamHandler(bus, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	readDataLine(t, reader)
	require.Equal(t, 1, handler.clientCount())

	resp.Body.Close()

	// Emitting after disconnect must not block even though the client is
	// gone; the registry clears once the serve loop observes the close.
	bus.Emit(events.RunProgress, "trials", map[string]interface{}{"percent": 10.0})
	assert.Eventually(t, func() bool { return handler.clientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
