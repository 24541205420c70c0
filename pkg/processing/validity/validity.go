// Package validity decides whether sectors and whole laps count, based
// on explicit invalidation marks, safety car overlap and absolute
// time-reasonableness bounds.
package validity

import (
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/safetycar"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

const (
	// a reported last-lap time below this is a counter artifact,
	// above MaxPlausibleLapMs it is corrupt telemetry
	MinPlausibleLapMs = 20_000
	MaxPlausibleLapMs = 480_000

	// absorbs float rounding when comparing lap intervals to windows
	OverlapEpsilon = 0.05
)

type Engine struct {
	store   *state.Store
	tracker *safetycar.Tracker
}

type Option func(e *Engine)

func WithStore(store *state.Store) Option {
	return func(e *Engine) { e.store = store }
}

func WithTracker(tracker *safetycar.Tracker) Option {
	return func(e *Engine) { e.tracker = tracker }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsSectorValid returns the finalized per-sector flag when the lap has
// been finalized; before that both invalidation sets (confirmed and
// live) mark all sectors of the lap invalid.
func (e *Engine) IsSectorValid(sessionUID uint64, carIdx, lapNumber, sector int) bool {
	key := model.SectorKey{SessionUID: sessionUID, CarIndex: carIdx, LapNumber: lapNumber}
	if rec, ok := e.store.SectorRecord(key); ok {
		if sector < 0 || sector > 2 {
			return false
		}
		return rec.SectorValid[sector]
	}
	return !e.store.IsLapMarkedInvalid(key)
}

// SafetyCarTag classifies the lap interval: "" when no window overlaps,
// otherwise "SC" or "VSC".
func (e *Engine) SafetyCarTag(sessionUID uint64, start, end float64) string {
	if kind, ok := e.tracker.OverlapKind(sessionUID, start, end, OverlapEpsilon); ok {
		return string(kind)
	}
	return ""
}

// IsValidLap applies the full lap validity rule: plausible time, no
// safety car overlap over [end-lapTime, end], and three valid sectors.
func (e *Engine) IsValidLap(rec *model.CompletedLapRecord) bool {
	if rec.LapTimeMs <= 0 || rec.LapTimeMs > MaxPlausibleLapMs {
		return false
	}
	if _, ok := e.tracker.OverlapKind(
		rec.SessionUID, rec.StartTime(), rec.EndTime, OverlapEpsilon); ok {
		return false
	}
	for sector := 0; sector < 3; sector++ {
		if !e.IsSectorValid(rec.SessionUID, rec.CarIndex, rec.LapNumber, sector) {
			return false
		}
	}
	return true
}

// VirtualBestLap sums the best valid sector times of a driver across
// the session. Zero means not all sectors have a valid time yet.
func (e *Engine) VirtualBestLap(sessionUID uint64, carIdx int) int {
	var best [3]int
	for key, rec := range e.store.SectorRecords(sessionUID) {
		if key.CarIndex != carIdx {
			continue
		}
		for sector, ms := range []int{rec.Sector1Ms, rec.Sector2Ms, rec.Sector3Ms} {
			if !rec.SectorValid[sector] || ms <= 0 {
				continue
			}
			if best[sector] == 0 || ms < best[sector] {
				best[sector] = ms
			}
		}
	}
	sum := 0
	for _, ms := range best {
		if ms == 0 {
			return 0
		}
		sum += ms
	}
	return sum
}
