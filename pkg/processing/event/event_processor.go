// Package event consumes event packets: penalties become incident
// records and confirmed lap invalidations, safety car events drive the
// window tracker.
package event

import (
	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/safetycar"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

const eventSource = "[Event]"

type Processor struct {
	store   *state.Store
	tracker *safetycar.Tracker
	logger  *log.Logger

	// invoked on SEND after the open windows were force-closed
	onSessionEnd func(sessionUID uint64)
}

type Option func(p *Processor)

func WithStore(store *state.Store) Option {
	return func(p *Processor) { p.store = store }
}

func WithTracker(tracker *safetycar.Tracker) Option {
	return func(p *Processor) { p.tracker = tracker }
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithSessionEndHook(hook func(sessionUID uint64)) Option {
	return func(p *Processor) { p.onSessionEnd = hook }
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{logger: log.Default().Named("event")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) ProcessEvent(h *packet.Header, ev *packet.EventData) {
	switch ev.Code {
	case packet.EventSessionStarted:
		p.logger.Info("session started", log.Uint64("sessionUID", h.SessionUID))
	case packet.EventSessionEnded:
		p.tracker.CloseOpenWindows(h.SessionUID)
		p.logger.Info("session ended", log.Uint64("sessionUID", h.SessionUID))
		if p.onSessionEnd != nil {
			p.onSessionEnd(h.SessionUID)
		}
	case packet.EventPenaltyIssued:
		p.processPenalty(h, ev.Penalty)
	case packet.EventSafetyCarDeploy:
		p.tracker.StartWindow(h.SessionUID, model.SafetyCar, h.SessionTime, eventSource)
	case packet.EventSafetyCarEnding:
		p.tracker.EndWindow(h.SessionUID, model.SafetyCar, h.SessionTime, eventSource)
	case packet.EventVirtualSCDeploy:
		p.tracker.StartWindow(h.SessionUID, model.VirtualSafetyCar, h.SessionTime, eventSource)
	case packet.EventVirtualSCEnding:
		p.tracker.EndWindow(h.SessionUID, model.VirtualSafetyCar, h.SessionTime, eventSource)
	default:
		p.logger.Debug("ignoring event", log.String("code", ev.Code))
	}
}

// processPenalty records the incident and applies the confirmed lap
// invalidations the penalty type carries. Unlike the live invalid flag
// these marks survive the end of the session.
func (p *Processor) processPenalty(h *packet.Header, pen *packet.PenaltyEvent) {
	if pen == nil {
		return
	}
	rec := model.IncidentRecord{
		LapNumber:     pen.LapNumber,
		CarIndex:      pen.VehicleIndex,
		Infringement:  model.InfringementName(pen.InfringementType),
		Penalty:       model.PenaltyName(pen.PenaltyType),
		TimeSec:       pen.TimeSec,
		PlacesGained:  pen.PlacesGained,
		OtherCarIndex: pen.OtherVehicleIdx,
		SessionTime:   h.SessionTime,
	}
	p.store.AddIncident(h.SessionUID, rec)
	p.logger.Info("penalty issued",
		log.Int("car", pen.VehicleIndex),
		log.Int("lap", pen.LapNumber),
		log.String("penalty", rec.Penalty),
		log.String("infringement", rec.Infringement))

	if !model.InvalidatesLap(pen.PenaltyType) {
		return
	}
	mark := func(lapNumber int) {
		if lapNumber <= 0 {
			return
		}
		p.store.MarkLapInvalid(model.SectorKey{
			SessionUID: h.SessionUID,
			CarIndex:   pen.VehicleIndex,
			LapNumber:  lapNumber,
		})
	}
	mark(pen.LapNumber)
	if model.InvalidatesNextLap(pen.PenaltyType) {
		mark(pen.LapNumber + 1)
	}
	if model.InvalidatesPreviousLap(pen.PenaltyType) {
		mark(pen.LapNumber - 1)
	}
}
