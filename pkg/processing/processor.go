// Package processing wires the packet decoders together: one Processor
// receives raw datagrams, decodes the header, dispatches by packet id
// and feeds the session, lap and event processors plus the live car
// caches.
package processing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/event"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/lap"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/safetycar"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/session"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/standings"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/validity"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

type Processor struct {
	store      *state.Store
	tracker    *safetycar.Tracker
	engine     *validity.Engine
	aggregator *standings.Aggregator

	sessionProc *session.Processor
	lapProc     *lap.Processor
	eventProc   *event.Processor

	logger       *log.Logger
	debugPackets bool

	onLap        func(model.CompletedLapRecord)
	onSessionEnd func(sessionUID uint64)
	onReAnchor   func(anchor model.WeekendAnchor)

	pktReceived metric.Int64Counter
	pktDropped  metric.Int64Counter
	lapsDone    metric.Int64Counter
}

type ProcessorOption func(proc *Processor)

func WithLogger(logger *log.Logger) ProcessorOption {
	return func(proc *Processor) { proc.logger = logger }
}

// WithDebugPackets logs every decoded header at debug level.
func WithDebugPackets(enabled bool) ProcessorOption {
	return func(proc *Processor) { proc.debugPackets = enabled }
}

// WithLapHook registers a callback for every completed lap record.
func WithLapHook(hook func(model.CompletedLapRecord)) ProcessorOption {
	return func(proc *Processor) { proc.onLap = hook }
}

// WithSessionEndHook is invoked when a session ends (SEND event or
// final classification), after the open safety car windows were closed.
func WithSessionEndHook(hook func(sessionUID uint64)) ProcessorOption {
	return func(proc *Processor) { proc.onSessionEnd = hook }
}

// WithReAnchorHook is invoked when the track changes and the weekend
// state was discarded, before any packet of the new weekend is applied.
func WithReAnchorHook(hook func(anchor model.WeekendAnchor)) ProcessorOption {
	return func(proc *Processor) { proc.onReAnchor = hook }
}

//nolint:funlen // plain wiring
func NewProcessor(opts ...ProcessorOption) *Processor {
	proc := &Processor{
		store:      state.NewStore(),
		aggregator: standings.NewAggregator(),
		logger:     log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(proc)
	}
	proc.tracker = safetycar.NewTracker(
		safetycar.WithLogger(proc.logger.Named("safetycar")))
	proc.engine = validity.NewEngine(
		validity.WithStore(proc.store),
		validity.WithTracker(proc.tracker))
	proc.sessionProc = session.NewProcessor(
		session.WithStore(proc.store),
		session.WithTracker(proc.tracker),
		session.WithLogger(proc.logger.Named("session")),
		session.WithReAnchorHook(proc.handleReAnchor))
	proc.lapProc = lap.NewProcessor(
		lap.WithStore(proc.store),
		lap.WithEngine(proc.engine),
		lap.WithAggregator(proc.aggregator),
		lap.WithLogger(proc.logger.Named("lap")),
		lap.WithLapHook(proc.handleLap))
	proc.eventProc = event.NewProcessor(
		event.WithStore(proc.store),
		event.WithTracker(proc.tracker),
		event.WithLogger(proc.logger.Named("event")),
		event.WithSessionEndHook(proc.handleSessionEnd))
	proc.setupMetrics()
	return proc
}

func (p *Processor) Store() *state.Store              { return p.store }
func (p *Processor) Tracker() *safetycar.Tracker      { return p.tracker }
func (p *Processor) Engine() *validity.Engine         { return p.engine }
func (p *Processor) Standings() *standings.Aggregator { return p.aggregator }

func (p *Processor) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("f1log.processing")
	register := func(name, desc string) metric.Int64Counter {
		counter, err := meter.Int64Counter(name,
			metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			p.logger.Error("failed to register metric",
				log.String("metric", name), log.ErrorField(err))
		}
		return counter
	}
	p.pktReceived = register("f1log.packets.received", "Number of received datagrams")
	p.pktDropped = register("f1log.packets.dropped", "Number of dropped datagrams")
	p.lapsDone = register("f1log.laps.completed", "Number of completed lap records")
}

func (p *Processor) count(counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter != nil {
		counter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}
}

// ProcessDatagram handles one raw datagram. Undecodable data is
// counted and dropped; a fault never stops the ingestion loop.
//
//nolint:cyclop // the dispatch table is the whole point
func (p *Processor) ProcessDatagram(buf []byte) {
	h, err := packet.DecodeHeader(buf)
	if err != nil {
		p.count(p.pktDropped, attribute.String("reason", "header"))
		p.logger.Debug("dropping datagram", log.ErrorField(err))
		return
	}
	p.count(p.pktReceived, attribute.Int("packetId", int(h.PacketID)))
	if p.debugPackets {
		p.logger.Debug("packet",
			log.Int("id", int(h.PacketID)),
			log.Uint64("sessionUID", h.SessionUID),
			log.Float64("sessionTime", h.SessionTime))
	}
	if h.SessionUID != 0 && h.SessionUID != p.store.SessionUID {
		p.logger.Info("new session detected", log.Uint64("sessionUID", h.SessionUID))
		p.store.BeginSession(h.SessionUID)
	}
	payload := buf[packet.HeaderLen:]

	switch h.PacketID {
	case packet.IDSession:
		d, err := packet.DecodeSession(payload)
		if err != nil {
			p.count(p.pktDropped, attribute.String("reason", "session"))
			p.logger.Debug("dropping session packet", log.ErrorField(err))
			return
		}
		p.sessionProc.ProcessSession(&h, &d)
	case packet.IDLapData:
		p.lapProc.ProcessLapData(&h, packet.DecodeLapData(payload))
	case packet.IDEvent:
		ev, err := packet.DecodeEvent(payload)
		if err != nil {
			p.count(p.pktDropped, attribute.String("reason", "event"))
			p.logger.Debug("dropping event packet", log.ErrorField(err))
			return
		}
		p.eventProc.ProcessEvent(&h, &ev)
	case packet.IDParticipants:
		p.processParticipants(payload)
	case packet.IDCarTelemetry:
		p.processCarTelemetry(packet.DecodeCarTelemetry(payload))
	case packet.IDCarStatus:
		p.processCarStatus(&h, packet.DecodeCarStatus(payload))
	case packet.IDFinalClassification:
		p.tracker.CloseOpenWindows(h.SessionUID)
		p.logger.Info("final classification received",
			log.Uint64("sessionUID", h.SessionUID))
		if p.onSessionEnd != nil {
			p.onSessionEnd(h.SessionUID)
		}
	default:
		// motion, setups, lobby info: nothing to record
	}
}

func (p *Processor) processParticipants(payload []byte) {
	slots, err := packet.DecodeParticipants(payload)
	if err != nil {
		p.count(p.pktDropped, attribute.String("reason", "participants"))
		p.logger.Debug("dropping participants packet", log.ErrorField(err))
		return
	}
	for i := range slots {
		if slots[i].Err != nil {
			continue
		}
		p.store.SetParticipant(slots[i].Index, slots[i].Value.Name, slots[i].Value.TeamID)
	}
}

func (p *Processor) processCarTelemetry(slots []packet.Slot[packet.CarTelemetryData]) {
	class := model.ClassOfSession(p.store.SessionType)
	for i := range slots {
		if slots[i].Err != nil {
			continue
		}
		p.store.NoteSpeed(slots[i].Index, slots[i].Value.Speed, class)
	}
}

// processCarStatus refreshes wear, compound and tyre age and appends a
// mix history entry on every observed fuel mix transition.
func (p *Processor) processCarStatus(h *packet.Header, slots []packet.Slot[packet.CarStatusData]) {
	for i := range slots {
		if slots[i].Err != nil {
			continue
		}
		d := &slots[i].Value
		car := &p.store.Cars[slots[i].Index]
		if car.HasWear && d.FuelMix != car.FuelMix {
			car.MixHistory = append(car.MixHistory, state.MixChange{
				Mix: d.FuelMix, At: h.SessionTime,
			})
		}
		if !car.HasWear {
			// first status defines the mix the current lap started on
			car.MixAtLapStart = d.FuelMix
		}
		car.HasWear = true
		car.Wear = d.TyresWear
		car.TyreCompound = model.TyreCompoundName(d.VisualTyreCompound)
		car.TyreAge = d.TyresAgeLaps
		car.FuelMix = d.FuelMix
	}
}

func (p *Processor) handleLap(rec model.CompletedLapRecord) {
	p.count(p.lapsDone, attribute.String("sessionType", rec.SessionType))
	if p.onLap != nil {
		p.onLap(rec)
	}
}

func (p *Processor) handleSessionEnd(sessionUID uint64) {
	if p.onSessionEnd != nil {
		p.onSessionEnd(sessionUID)
	}
}

func (p *Processor) handleReAnchor(anchor model.WeekendAnchor) {
	p.aggregator.Reset()
	if p.onReAnchor != nil {
		p.onReAnchor(anchor)
	}
}

// Shutdown closes all still-open safety car windows so a recording
// stopped mid-session still tags its last laps correctly.
func (p *Processor) Shutdown() {
	for _, uid := range p.store.QueuedSessions() {
		p.tracker.CloseOpenWindows(uid)
	}
	p.tracker.CloseOpenWindows(p.store.SessionUID)
}
