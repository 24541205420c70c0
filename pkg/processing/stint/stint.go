// Package stint partitions a driver's closed laps into tyre stints and
// derives the "clean" lap set used for pace summaries. Pit stops are
// inferred from tyre data alone since the feed carries no explicit
// pit stop event.
package stint

import (
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

// DefaultWearDropThreshold is the wear "healing" jump (percent) that can
// only come from a tyre change. Tuned empirically, override via Options.
const DefaultWearDropThreshold = -8.0

type Options struct {
	// negative; average wear delta below this indicates a pit stop
	WearDropThreshold float64
}

func DefaultOptions() Options {
	return Options{WearDropThreshold: DefaultWearDropThreshold}
}

// Stint is a contiguous run of laps on one tyre set.
type Stint struct {
	StartLap int
	EndLap   int
	Compound string
	Laps     []model.CompletedLapRecord
}

// Result carries both outputs of the segmentation pass.
type Result struct {
	// laps that neither enter nor leave the pits
	CleanLaps []model.CompletedLapRecord
	Stints    []Stint
}

func averageWear(rec *model.CompletedLapRecord) float64 {
	sum := 0.0
	for _, w := range rec.WheelWear {
		sum += w
	}
	return sum / float64(len(rec.WheelWear))
}

// pitStopBetween reports whether a pit stop happened between two
// consecutive laps: compound change, tyre age reset, or a wear drop
// that exceeds the configured threshold.
func pitStopBetween(prev, cur *model.CompletedLapRecord, opts Options) bool {
	if cur.TyreCompound != prev.TyreCompound {
		return true
	}
	if cur.TyreAge < prev.TyreAge {
		return true
	}
	return averageWear(cur)-averageWear(prev) < opts.WearDropThreshold
}

// Segment partitions one driver's laps. When a pit stop is inferred at
// lap k, the in-lap k-1 is removed from the clean set and the out-lap k
// is never added; a new stint starts at k.
func Segment(laps []model.CompletedLapRecord, opts Options) Result {
	ordered := slices.Clone(laps)
	slices.SortStableFunc(ordered, func(a, b model.CompletedLapRecord) int {
		return a.LapNumber - b.LapNumber
	})

	res := Result{CleanLaps: make([]model.CompletedLapRecord, 0, len(ordered))}
	if len(ordered) == 0 {
		return res
	}

	current := Stint{
		StartLap: ordered[0].LapNumber,
		Compound: ordered[0].TyreCompound,
	}
	for i := range ordered {
		lap := ordered[i]
		if i == 0 {
			current.Laps = append(current.Laps, lap)
			res.CleanLaps = append(res.CleanLaps, lap)
			continue
		}
		prev := ordered[i-1]
		if pitStopBetween(&prev, &lap, opts) {
			// drop the in-lap from the clean set if it made it in
			if n := len(res.CleanLaps); n > 0 &&
				res.CleanLaps[n-1].LapNumber == prev.LapNumber {
				res.CleanLaps = res.CleanLaps[:n-1]
			}
			current.EndLap = prev.LapNumber
			res.Stints = append(res.Stints, current)
			current = Stint{
				StartLap: lap.LapNumber,
				Compound: lap.TyreCompound,
				Laps:     []model.CompletedLapRecord{lap},
			}
			// the out-lap never enters the clean set
			continue
		}
		current.Laps = append(current.Laps, lap)
		res.CleanLaps = append(res.CleanLaps, lap)
	}
	current.EndLap = ordered[len(ordered)-1].LapNumber
	res.Stints = append(res.Stints, current)
	return res
}

// CleanLaps is a convenience wrapper returning only the clean pace set.
func CleanLaps(laps []model.CompletedLapRecord, opts Options) []model.CompletedLapRecord {
	return Segment(laps, opts).CleanLaps
}

// RepresentativeLap picks the stint's pace reference: the fastest
// safety-car-free lap among the first three laps of the stint. Nil when
// no lap qualifies.
func RepresentativeLap(s Stint) *model.CompletedLapRecord {
	head := s.Laps[:min(3, len(s.Laps))]
	candidates := lo.Filter(head, func(rec model.CompletedLapRecord, _ int) bool {
		return rec.SafetyCarTag == "" && rec.LapTimeMs > 0
	})
	if len(candidates) == 0 {
		return nil
	}
	best := lo.MinBy(candidates, func(a, b model.CompletedLapRecord) bool {
		return a.LapTimeMs < b.LapTimeMs
	})
	return &best
}
