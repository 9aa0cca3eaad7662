package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Trials  int    `json:"trials"`
	Workers int    `json:"workers"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunProgressData contains data for RunProgress events
type RunProgressData struct {
	RunID     string  `json:"run_id"`
	Completed int     `json:"completed"`
	Discarded int     `json:"discarded"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// EventType returns the event type for RunProgressData
func (d *RunProgressData) EventType() EventType {
	return RunProgress
}

// RunFinishedData contains data for RunFinished events
type RunFinishedData struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Discarded int    `json:"discarded"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// EventType returns the event type for RunFinishedData
func (d *RunFinishedData) EventType() EventType {
	return RunFinished
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// TrialCompletedData contains data for TrialCompleted events
type TrialCompletedData struct {
	RunID     string  `json:"run_id"`
	Seed      int64   `json:"seed"`
	Sharpe    float64 `json:"sharpe"`
	Profit    float64 `json:"profit"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

// EventType returns the event type for TrialCompletedData
func (d *TrialCompletedData) EventType() EventType {
	return TrialCompleted
}

// TrialDiscardedData contains data for TrialDiscarded events
type TrialDiscardedData struct {
	RunID       string `json:"run_id"`
	Seed        int64  `json:"seed"`
	FailedStage string `json:"failed_stage"`
	Error       string `json:"error"`
}

// EventType returns the event type for TrialDiscardedData
func (d *TrialDiscardedData) EventType() EventType {
	return TrialDiscarded
}

// SummaryReadyData contains data for SummaryReady events
type SummaryReadyData struct {
	RunID string `json:"run_id"`
}

// EventType returns the event type for SummaryReadyData
func (d *SummaryReadyData) EventType() EventType {
	return SummaryReady
}

// ArchiveUploadedData contains data for ArchiveUploaded events
type ArchiveUploadedData struct {
	Keys  []string `json:"keys"`
	Bytes int64    `json:"bytes"`
	Runs  int      `json:"runs"`
}

// EventType returns the event type for ArchiveUploadedData
func (d *ArchiveUploadedData) EventType() EventType {
	return ArchiveUploaded
}

// UniverseSyncedData contains data for UniverseSynced events
type UniverseSyncedData struct {
	Securities int `json:"securities"`
	Sectors    int `json:"sectors"`
}

// EventType returns the event type for UniverseSyncedData
func (d *UniverseSyncedData) EventType() EventType {
	return UniverseSynced
}

// PricesWarmedData contains data for PricesWarmed events
type PricesWarmedData struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
}

// EventType returns the event type for PricesWarmedData
func (d *PricesWarmedData) EventType() EventType {
	return PricesWarmed
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ActiveRuns    int     `json:"active_runs"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
