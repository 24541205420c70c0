// Package lap turns the continuously updating lap data fields into
// discrete completed-lap records. This is the reconstruction core: lap
// closure is inferred from lap counter transitions and the buffered
// live sector times are reconciled against the exact (session, lap)
// identity of the closing lap.
package lap

import (
	"fmt"
	"math"
	"strings"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/standings"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/validity"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

type Processor struct {
	store      *state.Store
	engine     *validity.Engine
	aggregator *standings.Aggregator
	logger     *log.Logger
	onLap      func(model.CompletedLapRecord)
}

type Option func(p *Processor)

func WithStore(store *state.Store) Option {
	return func(p *Processor) { p.store = store }
}

func WithEngine(engine *validity.Engine) Option {
	return func(p *Processor) { p.engine = engine }
}

func WithAggregator(aggregator *standings.Aggregator) Option {
	return func(p *Processor) { p.aggregator = aggregator }
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithLapHook registers a callback invoked for every emitted record,
// after it has been queued and folded into the standings.
func WithLapHook(hook func(model.CompletedLapRecord)) Option {
	return func(p *Processor) { p.onLap = hook }
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{logger: log.Default().Named("lap")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessLapData folds over all car slots; a slot decode fault only
// skips that car.
func (p *Processor) ProcessLapData(h *packet.Header, slots []packet.Slot[packet.LapDataCar]) {
	for i := range slots {
		if slots[i].Err != nil {
			p.logger.Debug("skipping car slot",
				log.Int("car", slots[i].Index), log.ErrorField(slots[i].Err))
			continue
		}
		p.processCar(h, slots[i].Index, &slots[i].Value)
	}
}

//nolint:cyclop // the closure rule reads better in one place
func (p *Processor) processCar(h *packet.Header, carIdx int, d *packet.LapDataCar) {
	car := &p.store.Cars[carIdx]

	if d.CurrentLapInvalid && d.CurrentLapNum > 0 {
		p.store.MarkLiveInvalid(model.SectorKey{
			SessionUID: h.SessionUID, CarIndex: carIdx, LapNumber: d.CurrentLapNum,
		})
	}

	// keep the sector buffer current; stale buffers are rejected by
	// tag, not overwritten away
	if d.Sector1Ms > 0 && d.Sector2Ms > 0 && d.CurrentLapNum > 0 {
		car.Sectors = state.SectorBuffer{
			LapNumber:  d.CurrentLapNum,
			SessionUID: h.SessionUID,
			Sector1Ms:  d.Sector1Ms,
			Sector2Ms:  d.Sector2Ms,
		}
	}

	lastLapMs := int(math.Round(d.LastLapTime * 1000))

	// lap closure: counter strictly increased, the car had started a
	// lap before, and the reported time is no counter-reset artifact
	if d.CurrentLapNum > car.CurrentLap && car.CurrentLap > 0 &&
		lastLapMs >= validity.MinPlausibleLapMs {
		endTime := h.SessionTime - d.CurrentLapTime
		if endTime < 0 || d.CurrentLapTime < 0 {
			endTime = h.SessionTime
		}
		p.closeLap(h, carIdx, car, car.CurrentLap, lastLapMs, endTime)
		// the history only ever describes the lap just completed
		car.MixHistory = nil
		car.MixAtLapStart = car.FuelMix
	}

	car.CurrentLap = d.CurrentLapNum
	car.LastLapTimeMs = lastLapMs
}

//nolint:funlen // builds the complete record in one pass
func (p *Processor) closeLap(
	h *packet.Header, carIdx int, car *state.LiveCar,
	lapNumber, lapTimeMs int, endTime float64,
) {
	if lapTimeMs > validity.MaxPlausibleLapMs {
		p.logger.Debug("implausible lap time, dropping lap",
			log.Int("car", carIdx), log.Int("lap", lapNumber),
			log.Int("lapTimeMs", lapTimeMs))
		return
	}

	key := model.SectorKey{
		SessionUID: h.SessionUID, CarIndex: carIdx, LapNumber: lapNumber,
	}
	if !car.Sectors.Matches(h.SessionUID, lapNumber) {
		// no partial records: without matching sectors the lap is lost
		p.logger.Debug("sector buffer does not match closing lap, dropping lap",
			log.Int("car", carIdx), log.Int("lap", lapNumber),
			log.Int("bufferLap", car.Sectors.LapNumber),
			log.Uint64("bufferSession", car.Sectors.SessionUID))
		return
	}

	s1 := car.Sectors.Sector1Ms
	s2 := car.Sectors.Sector2Ms
	s3 := lapTimeMs - s1 - s2
	if s3 < 0 {
		// drift/rounding, not a real negative duration
		s3 = 0
	}

	startTime := endTime - float64(lapTimeMs)/1000.0
	marked := p.store.IsLapMarkedInvalid(key)
	scTag := p.engine.SafetyCarTag(h.SessionUID, startTime, endTime)

	valid := !marked && scTag == ""
	sectors := model.SectorRecord{
		Sector1Ms:   s1,
		Sector2Ms:   s2,
		Sector3Ms:   s3,
		SectorValid: [3]bool{!marked, !marked, !marked},
		LapValid:    valid,
	}
	if !p.store.FinalizeSectors(key, sectors) {
		p.logger.Debug("lap already finalized, keeping first record",
			log.Int("car", carIdx), log.Int("lap", lapNumber))
		return
	}

	mixLabel, mixHistory := p.attributeFuelMix(car, startTime, endTime)
	sessionType := p.store.SessionTypeOf(h.SessionUID)
	rec := model.CompletedLapRecord{
		SessionUID:   h.SessionUID,
		SessionType:  model.SessionTypeName(sessionType),
		CarIndex:     carIdx,
		Driver:       p.store.DriverName(carIdx),
		LapNumber:    lapNumber,
		TyreCompound: car.TyreCompound,
		LapTimeMs:    lapTimeMs,
		WheelWear:    car.Wear,
		EndTime:      endTime,
		SafetyCarTag: scTag,
		TyreAge:      car.TyreAge,
		Sector1Ms:    s1,
		Sector2Ms:    s2,
		Sector3Ms:    s3,
		FuelMix:      mixLabel,
		MixHistory:   mixHistory,
	}

	p.store.Queue(h.SessionUID).Enqueue(rec)
	p.aggregator.RecordLap(h.SessionUID, carIdx, lapNumber, lapTimeMs,
		model.ClassOfSession(sessionType))
	if p.onLap != nil {
		p.onLap(rec)
	}
	p.logger.Debug("lap completed",
		log.Int("car", carIdx), log.Int("lap", lapNumber),
		log.Int("lapTimeMs", lapTimeMs), log.String("sc", scTag))
}

// attributeFuelMix picks the mix with the greatest cumulative duration
// inside the lap interval ("most time spent", not "last observed") and
// renders the transition history as "mix (seconds-into-lap)".
func (p *Processor) attributeFuelMix(
	car *state.LiveCar, startTime, endTime float64,
) (label, history string) {
	if len(car.MixHistory) == 0 {
		return model.FuelMixName(car.FuelMix), ""
	}

	durations := make(map[uint8]float64)
	order := make([]uint8, 0, len(car.MixHistory)+1)
	note := func(mix uint8, d float64) {
		if _, seen := durations[mix]; !seen {
			order = append(order, mix)
		}
		if d > 0 {
			durations[mix] += d
		}
	}

	cursor := startTime
	currentMix := car.MixAtLapStart
	parts := make([]string, 0, len(car.MixHistory))
	for _, change := range car.MixHistory {
		at := math.Min(math.Max(change.At, startTime), endTime)
		note(currentMix, at-cursor)
		cursor = at
		currentMix = change.Mix
		parts = append(parts, fmt.Sprintf("%s (%.0fs)",
			model.FuelMixName(change.Mix), change.At-startTime))
	}
	note(currentMix, endTime-cursor)

	best := order[0]
	for _, mix := range order[1:] {
		if durations[mix] > durations[best] {
			best = mix
		}
	}
	return model.FuelMixName(best), strings.Join(parts, ", ")
}
