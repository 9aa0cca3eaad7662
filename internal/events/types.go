// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Run lifecycle events
	RunStarted  EventType = "RUN_STARTED"
	RunProgress EventType = "RUN_PROGRESS"
	RunFinished EventType = "RUN_FINISHED"
	RunFailed   EventType = "RUN_FAILED"

	// Trial events emitted as the batch advances
	TrialCompleted EventType = "TRIAL_COMPLETED"
	TrialDiscarded EventType = "TRIAL_DISCARDED"

	// Post-run events
	SummaryReady    EventType = "SUMMARY_READY"
	ArchiveUploaded EventType = "ARCHIVE_UPLOADED"

	// Data maintenance events
	UniverseSynced EventType = "UNIVERSE_SYNCED"
	PricesWarmed   EventType = "PRICES_WARMED"

	// Operational events
	ErrorOccurred       EventType = "ERROR_OCCURRED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
)

// AllTypes returns every event type the bus can carry. The SSE stream
// subscribes to this set when no filter is given.
func AllTypes() []EventType {
	return []EventType{
		RunStarted,
		RunProgress,
		RunFinished,
		RunFailed,
		TrialCompleted,
		TrialDiscarded,
		SummaryReady,
		ArchiveUploaded,
		UniverseSynced,
		PricesWarmed,
		ErrorOccurred,
		SystemStatusChanged,
	}
}
