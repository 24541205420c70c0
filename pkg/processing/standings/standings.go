// Package standings maintains provisional per-session standings from
// the stream of completed laps.
package standings

import (
	"slices"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

type aggKey struct {
	sessionUID uint64
	carIdx     int
}

type orderKey struct {
	sessionUID uint64
	class      model.SessionClass
}

type Aggregator struct {
	aggregates map[aggKey]model.DriverAggregate
	orderings  map[orderKey][]int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		aggregates: make(map[aggKey]model.DriverAggregate),
		orderings:  make(map[orderKey][]int),
	}
}

// RecordLap folds one completed lap into the car's aggregate and
// recomputes the full session ordering. Laps and best time never
// decrease; orderings are rebuilt from scratch on every update.
func (a *Aggregator) RecordLap(
	sessionUID uint64, carIdx, lapNumber, lapTimeMs int, class model.SessionClass,
) {
	key := aggKey{sessionUID, carIdx}
	agg := a.aggregates[key]
	agg.Laps = max(agg.Laps, lapNumber)
	agg.TotalTimeMs += int64(lapTimeMs)
	if lapTimeMs > 0 && (agg.BestTimeMs == 0 || lapTimeMs < agg.BestTimeMs) {
		agg.BestTimeMs = lapTimeMs
	}
	a.aggregates[key] = agg
	a.recompute(sessionUID, class)
}

func (a *Aggregator) recompute(sessionUID uint64, class model.SessionClass) {
	cars := make([]int, 0)
	for key := range a.aggregates {
		if key.sessionUID == sessionUID {
			cars = append(cars, key.carIdx)
		}
	}
	slices.Sort(cars) // stable base order before ranking

	if class == model.ClassRace {
		slices.SortStableFunc(cars, func(x, y int) int {
			ax := a.aggregates[aggKey{sessionUID, x}]
			ay := a.aggregates[aggKey{sessionUID, y}]
			if ax.Laps != ay.Laps {
				return ay.Laps - ax.Laps
			}
			return int(ax.TotalTimeMs - ay.TotalTimeMs)
		})
	} else {
		// practice and qualifying seat by best lap, no time sorts last
		slices.SortStableFunc(cars, func(x, y int) int {
			bx := a.aggregates[aggKey{sessionUID, x}].BestTimeMs
			by := a.aggregates[aggKey{sessionUID, y}].BestTimeMs
			switch {
			case bx == by:
				return 0
			case bx == 0:
				return 1
			case by == 0:
				return -1
			default:
				return bx - by
			}
		})
	}
	a.orderings[orderKey{sessionUID, class}] = cars
}

// Ordering returns the current seating order (car indices) for a
// session and class.
func (a *Aggregator) Ordering(sessionUID uint64, class model.SessionClass) []int {
	return a.orderings[orderKey{sessionUID, class}]
}

func (a *Aggregator) Aggregate(sessionUID uint64, carIdx int) (model.DriverAggregate, bool) {
	agg, ok := a.aggregates[aggKey{sessionUID, carIdx}]
	return agg, ok
}

// Reset discards all aggregates and orderings, used on weekend re-anchor.
func (a *Aggregator) Reset() {
	a.aggregates = make(map[aggKey]model.DriverAggregate)
	a.orderings = make(map[orderKey][]int)
}
