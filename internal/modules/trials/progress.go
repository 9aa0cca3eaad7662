package trials

import (
	"time"

	"github.com/aristath/trellis/internal/events"
)

// progressReporter emits RunProgress events while a batch executes.
// Reports are throttled so a fast batch cannot flood the SSE stream; the
// final report always goes out.
type progressReporter struct {
	eventManager *events.Manager
	runID        string
	total        int
	lastReport   time.Time
	minInterval  time.Duration
}

// newProgressReporter creates a reporter with the default 100ms throttle
// (10 updates/sec max) for real-time feel.
func newProgressReporter(em *events.Manager, runID string, total int) *progressReporter {
	return &progressReporter{
		eventManager: em,
		runID:        runID,
		total:        total,
		minInterval:  100 * time.Millisecond,
	}
}

// Report emits a progress event. Throttled unless the batch just finished.
func (pr *progressReporter) Report(completed, discarded int) {
	if pr.eventManager == nil {
		return
	}

	now := time.Now()
	done := completed + discarded
	if now.Sub(pr.lastReport) < pr.minInterval && done != pr.total {
		return
	}
	pr.lastReport = now

	percent := 0.0
	if pr.total > 0 {
		percent = 100 * float64(done) / float64(pr.total)
	}
	pr.eventManager.EmitTyped(events.RunProgress, "trials", &events.RunProgressData{
		RunID:     pr.runID,
		Completed: completed,
		Discarded: discarded,
		Total:     pr.total,
		Percent:   percent,
	})
}
