package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/events"
)

// EventsStreamHandler streams bus events to clients over Server-Sent Events
// (SSE). It subscribes to the bus once, at construction, and fans events out
// to per-connection channels; the bus itself has no unsubscribe.
type EventsStreamHandler struct {
	log     zerolog.Logger
	mu      sync.Mutex
	nextID  int
	clients map[int]*streamClient
}

type streamClient struct {
	ch chan *events.Event
	// types filters delivery; nil means every type.
	types map[events.EventType]bool
}

// NewEventsStreamHandler creates the stream handler and subscribes it to
// every event type the bus carries.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	h := &EventsStreamHandler{
		log:     log.With().Str("component", "events_stream").Logger(),
		clients: make(map[int]*streamClient),
	}
	for _, eventType := range events.AllTypes() {
		bus.Subscribe(eventType, h.broadcast)
	}
	return h
}

// broadcast fans one event out to every connected client whose filter admits
// it. Sends never block: a client that cannot keep up loses events rather
// than stalling the emitter.
func (h *EventsStreamHandler) broadcast(event *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		if client.types != nil && !client.types[event.Type] {
			continue
		}
		select {
		case client.ch <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Client channel full, dropping event")
		}
	}
}

func (h *EventsStreamHandler) addClient(types map[events.EventType]bool) (int, chan *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan *events.Event, 100) // Buffer to prevent blocking
	h.clients[id] = &streamClient{ch: ch, types: types}
	return id, ch
}

func (h *EventsStreamHandler) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// clientCount reports connected clients, for the status endpoint and tests.
func (h *EventsStreamHandler) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// ?types=RUN_PROGRESS,RUN_FINISHED narrows the stream.
	typesFilter := r.URL.Query().Get("types")
	var allowedTypes map[events.EventType]bool
	if typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	id, eventChan := h.addClient(allowedTypes)
	defer h.removeClient(id)

	h.log.Info().
		Int("client_id", id).
		Str("types_filter", typesFilter).
		Msg("Client connected to event stream")

	done := r.Context().Done()

	// Send initial connection message
	fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	// Heartbeat ticker to keep connection alive
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.log.Info().Int("client_id", id).Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			eventJSON := h.encodeEvent(map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			})

			fmt.Fprintf(w, "data: %s\n\n", eventJSON)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// encodeEvent encodes an event map to a JSON string.
func (h *EventsStreamHandler) encodeEvent(event map[string]interface{}) string {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event")
		return `{"type":"error","message":"encoding failed"}`
	}
	return string(data)
}
