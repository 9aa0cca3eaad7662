package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribedType(t *testing.T) {
	bus := NewBus()

	var got []*Event
	bus.Subscribe(TrialCompleted, func(e *Event) {
		got = append(got, e)
	})

	bus.Emit(TrialCompleted, "trials", map[string]interface{}{"seed": float64(7)})
	bus.Emit(RunFinished, "trials", nil)

	require.Len(t, got, 1)
	assert.Equal(t, TrialCompleted, got[0].Type)
	assert.Equal(t, "trials", got[0].Module)
	assert.Equal(t, float64(7), got[0].Data["seed"])
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBusMultipleHandlersInOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(RunStarted, func(*Event) { order = append(order, "first") })
	bus.Subscribe(RunStarted, func(*Event) { order = append(order, "second") })

	bus.Emit(RunStarted, "trials", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManagerEmitTypedRoundTrip(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(TrialDiscarded, func(e *Event) { received = e })

	manager.EmitTyped(TrialDiscarded, "trials", &TrialDiscardedData{
		RunID:       "run-1",
		Seed:        42,
		FailedStage: "SECTOR_OPTIMIZE",
		Error:       "singular covariance matrix",
	})

	require.NotNil(t, received)
	typed, ok := received.GetTypedData().(*TrialDiscardedData)
	require.True(t, ok)
	assert.Equal(t, "run-1", typed.RunID)
	assert.Equal(t, int64(42), typed.Seed)
	assert.Equal(t, "SECTOR_OPTIMIZE", typed.FailedStage)
	assert.Equal(t, "singular covariance matrix", typed.Error)
}

func TestManagerEmitError(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	manager.EmitError("provider", errors.New("fetch failed"), map[string]interface{}{"symbol": "AAPL"})

	require.NotNil(t, received)
	typed, ok := received.GetTypedData().(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "fetch failed", typed.Error)
	assert.Equal(t, "AAPL", typed.Context["symbol"])
}

func TestGetTypedDataUnknownPayload(t *testing.T) {
	event := &Event{Type: EventType("SOMETHING_ELSE"), Data: map[string]interface{}{"x": 1}}
	assert.Nil(t, event.GetTypedData())

	event = &Event{Type: RunProgress}
	assert.Nil(t, event.GetTypedData())
}
