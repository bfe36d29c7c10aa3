package analysis

import (
	"math"
	"time"

	"quote-observer/src/analysis/core"
	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/utils"
)

// -----------------------------------------------------------------------------
// EntityState
// -----------------------------------------------------------------------------

// EntityState holds the three per-field rolling windows and the last timestamp
// seen for one security. States are created lazily on a security's first
// snapshot and live for as long as the StateMap does.
type EntityState struct {
	Bid           *core.Window
	Mid           *core.Window
	Ask           *core.Window
	LastTimestamp int64
}

// -----------------------------------------------------------------------------

// NewEntityState creates a fresh state with empty windows
func NewEntityState(windowSize int) *EntityState {
	return &EntityState{
		Bid: core.NewWindow(windowSize),
		Mid: core.NewWindow(windowSize),
		Ask: core.NewWindow(windowSize),
	}
}

// -----------------------------------------------------------------------------

// ResetWindows discards all three windows' history. Called when a time gap
// makes the held values statistically non-contiguous with the new sample.
func (s *EntityState) ResetWindows() {
	s.Bid.Reset()
	s.Mid.Reset()
	s.Ask.Reset()
}

// -----------------------------------------------------------------------------
// StateMap
// -----------------------------------------------------------------------------

// StateMap is the full set of per-security states for one engine instance.
// Lifecycle: load -> mutate across a batch -> save. Never shared between
// concurrent batches.
type StateMap map[string]*EntityState

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine applies an ordered snapshot stream to the StateMap and emits one
// stdev record per snapshot that yields at least one valid field statistic.
type Engine struct {
	Config        *models.MConfig
	Logger        *logger.Logger
	States        StateMap
	HighWaterMark int64
	Metrics       models.MProcessingMetrics

	// resumeFrom is the high-water mark restored from the state file. The
	// windows already reflect every snapshot up to it, so re-fed snapshots at
	// or below it must not be pushed again.
	resumeFrom int64

	calendar *utils.TradingCalendar
}

// -----------------------------------------------------------------------------

// NewEngine creates an engine over a previously loaded (possibly empty)
// StateMap and its high-water mark.
func NewEngine(cfg *models.MConfig, states StateMap, highWaterMark int64, log *logger.Logger) *Engine {
	if states == nil {
		states = make(StateMap)
	}

	e := &Engine{
		Config:        cfg,
		Logger:        log,
		States:        states,
		HighWaterMark: highWaterMark,
		resumeFrom:    highWaterMark,
	}

	if cfg.Calendar.Enabled {
		e.calendar = utils.GetCalendar(cfg.Calendar.MIC)
		log.Info("Trading calendar enabled (MIC: %s): closed-market gaps will not reset windows", cfg.Calendar.MIC)
	}

	return e
}

// -----------------------------------------------------------------------------

// Process consumes snapshots ordered by (security_id, timestamp) and returns
// the emitted records in the same order. Snapshots before startTs only warm up
// the windows; emission is limited to [startTs, endTs]. The input is assumed
// pre-validated and strictly time-ordered per security (the loader's job).
//
// Snapshots at or below the restored high-water mark are already counted in
// the loaded windows and are skipped entirely, making a re-run over a covered
// range (or a lookback overlap) a no-op for the final window contents.
func (e *Engine) Process(snapshots []models.MQuoteSnapshot, startTs, endTs int64) []models.MStdevRecord {
	begin := time.Now()
	results := make([]models.MStdevRecord, 0, len(snapshots))

	for _, snap := range snapshots {
		e.Metrics.SnapshotsIn++

		if snap.Timestamp <= e.resumeFrom {
			e.Metrics.SnapshotsSkipped++
			continue
		}

		record := e.apply(snap)

		if snap.Timestamp > e.HighWaterMark {
			e.HighWaterMark = snap.Timestamp
		}

		if snap.Timestamp < startTs || snap.Timestamp > endTs {
			continue // warm-up or overshoot, state updated but nothing emitted
		}
		if record.BidStdev == nil && record.MidStdev == nil && record.AskStdev == nil {
			continue
		}

		results = append(results, record)
		e.Metrics.RecordsEmitted++
	}

	e.Metrics.SecuritiesTracked = len(e.States)
	e.Metrics.ProcessTimeSeconds += time.Since(begin).Seconds()

	e.Logger.Info("Processed %d snapshots (%d already counted) -> %d records (%d securities, %d gap resets)",
		e.Metrics.SnapshotsIn, e.Metrics.SnapshotsSkipped, e.Metrics.RecordsEmitted, e.Metrics.SecuritiesTracked, e.Metrics.GapResets)

	return results
}

// -----------------------------------------------------------------------------

// apply advances one security's state by one snapshot and builds its record
func (e *Engine) apply(snap models.MQuoteSnapshot) models.MStdevRecord {
	state, ok := e.States[snap.SecurityID]
	if !ok {
		state = NewEntityState(e.Config.Engine.WindowSize)
		e.States[snap.SecurityID] = state
	} else if e.isGap(state.LastTimestamp, snap.Timestamp) {
		state.ResetWindows()
		e.Metrics.GapResets++
		e.Logger.Debug("Gap reset for %s at %d (last seen %d)", snap.SecurityID, snap.Timestamp, state.LastTimestamp)
	}
	state.LastTimestamp = snap.Timestamp

	bidOK := pushIfUsable(state.Bid, snap.Bid)
	midOK := pushIfUsable(state.Mid, snap.Mid)
	askOK := pushIfUsable(state.Ask, snap.Ask)

	return models.MStdevRecord{
		SecurityID: snap.SecurityID,
		Timestamp:  snap.Timestamp,
		BidStdev:   e.fieldStdev(state.Bid, bidOK),
		MidStdev:   e.fieldStdev(state.Mid, midOK),
		AskStdev:   e.fieldStdev(state.Ask, askOK),
		CreatedAt:  time.Now().UTC(),
	}
}

// -----------------------------------------------------------------------------

// isGap reports whether the elapsed time since the previous snapshot
// invalidates the windows. With the default tolerance of 0, anything beyond
// exactly one cadence interval is a gap.
func (e *Engine) isGap(last, ts int64) bool {
	elapsed := ts - last
	if elapsed <= e.Config.Engine.CadenceSeconds+e.Config.Engine.GapToleranceSeconds {
		return false
	}
	if e.calendar == nil {
		return true
	}

	// Calendar forgiveness: if every missed slot falls in a closed market
	// period (nights, weekends, holidays), the feed never owed us a sample
	// and the window is still contiguous.
	for t := last + e.Config.Engine.CadenceSeconds; t < ts; t += e.Config.Engine.CadenceSeconds {
		if e.calendar.IsOpenAt(time.Unix(t, 0).UTC()) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// fieldStdev builds the emitted value for one field, applying the minimum
// periods threshold and the missing-value policy.
func (e *Engine) fieldStdev(w *core.Window, pushed bool) *float64 {
	if !pushed && e.Config.Engine.MissingValuePolicy == models.MissingValueOmit {
		return nil
	}
	if w.Len() < e.Config.Engine.MinPeriods {
		return nil
	}

	sd, ok := w.Stdev()
	if !ok {
		return nil
	}
	return &sd
}

// -----------------------------------------------------------------------------

// pushIfUsable feeds a value into a window unless it is absent or outside any
// sane numeric range. Returns whether the window was updated.
func pushIfUsable(w *core.Window, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= 1e15 {
		return false
	}
	w.Push(v)
	return true
}
