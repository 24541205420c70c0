// Package session consumes session packets: it anchors the race
// weekend on the track, registers the session type and derives safety
// car windows from the periodically reported deployment status.
package session

import (
	"fmt"
	"time"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/safetycar"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

type Processor struct {
	store   *state.Store
	tracker *safetycar.Tracker
	logger  *log.Logger
	now     func() time.Time

	// invoked after the weekend was re-anchored to a new track
	onReAnchor func(anchor model.WeekendAnchor)
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

func WithReAnchorHook(hook func(anchor model.WeekendAnchor)) Option {
	return func(p *Processor) { p.onReAnchor = hook }
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		logger: log.Default().Named("session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSession handles one decoded session packet. Order matters:
// the anchor is settled first, then the session type is registered,
// then the safety car status transition is applied.
func (p *Processor) ProcessSession(h *packet.Header, d *packet.SessionData) {
	p.ensureAnchor(h, d)
	p.store.RecordSessionType(h.SessionUID, d.SessionType)
	p.applySafetyCarStatus(h, d.SafetyCarStatus)
}

// ensureAnchor establishes or replaces the weekend anchor. A track
// change to a valid id means a different event: everything accumulated
// so far belongs to the old weekend and is flushed and discarded by the
// re-anchor hook and the store reset.
func (p *Processor) ensureAnchor(h *packet.Header, d *packet.SessionData) {
	if !model.ValidTrackID(d.TrackID) {
		p.logger.Warn("session packet with unknown track id, keeping anchor",
			log.Int("trackId", d.TrackID))
		return
	}
	anchored := p.store.Anchor.Date != ""
	if anchored && p.store.Anchor.TrackID == d.TrackID {
		return
	}
	p.store.ReAnchor(h.SessionUID, p.now().Format("2006-01-02"), d.TrackID)
	p.tracker.Reset()
	anchor := p.store.Anchor
	if !anchored {
		p.logger.Info("weekend anchored",
			log.String("track", anchor.TrackName),
			log.String("date", anchor.Date))
		return
	}
	p.logger.Info("track changed, re-anchoring weekend",
		log.String("track", anchor.TrackName),
		log.String("date", anchor.Date))
	if p.onReAnchor != nil {
		p.onReAnchor(anchor)
	}
}

// applySafetyCarStatus turns the level-triggered status field into edge
// transitions on the tracker. The last seen status is kept in the store
// so repeated packets with the same status stay silent.
func (p *Processor) applySafetyCarStatus(h *packet.Header, status uint8) {
	prev := p.store.LastSafetyCarStatus
	if status == prev {
		return
	}
	p.store.LastSafetyCarStatus = status
	at := h.SessionTime
	source := fmt.Sprintf("[Session] status %d->%d", prev, status)

	// close whatever the previous status had open
	switch prev {
	case packet.SafetyCarFull:
		p.tracker.EndWindow(h.SessionUID, model.SafetyCar, at, source)
	case packet.SafetyCarVirtual:
		p.tracker.EndWindow(h.SessionUID, model.VirtualSafetyCar, at, source)
	}
	switch status {
	case packet.SafetyCarFull:
		p.tracker.StartWindow(h.SessionUID, model.SafetyCar, at, source)
	case packet.SafetyCarVirtual:
		p.tracker.StartWindow(h.SessionUID, model.VirtualSafetyCar, at, source)
	}
}
