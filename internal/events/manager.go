package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Event represents a system event with typed data
// Data is kept as a map so events serialize directly onto the SSE stream;
// GetTypedData recovers the typed payload for in-process consumers.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// GetTypedData attempts to convert the Data map to typed EventData
// Returns the typed data if conversion is successful, nil otherwise
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	switch e.Type {
	case RunStarted:
		var data RunStartedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case RunProgress:
		var data RunProgressData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case RunFinished:
		var data RunFinishedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case RunFailed:
		var data RunFailedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrialCompleted:
		var data TrialCompletedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrialDiscarded:
		var data TrialDiscardedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case SummaryReady:
		var data SummaryReadyData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ArchiveUploaded:
		var data ArchiveUploadedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case UniverseSynced:
		var data UniverseSyncedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case PricesWarmed:
		var data PricesWarmedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case SystemStatusChanged:
		var data SystemStatusChangedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ErrorOccurred:
		var data ErrorEventData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	}

	return nil
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus so consumers can subscribe.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit emits an event to the bus and logs it
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	m.bus.Emit(eventType, module, data)

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitTyped emits an event with typed data to the bus and logs it
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	m.Emit(eventType, module, convertEventDataToMap(data))
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	}
	m.EmitTyped(ErrorOccurred, module, data)
}

// convertEventDataToMap converts typed EventData to map[string]interface{}
func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}

	return result
}
