package sink

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

// Saver moves queued records from the store into the sink. Saves are
// guarded by a try-lock: when a save is still running, the next trigger
// is skipped and the records simply stay queued for the following
// cycle. Save requests are never queued up.
type Saver struct {
	store  *state.Store
	sink   Sink
	logger *log.Logger

	mu sync.Mutex

	// incidents already persisted per session, avoids re-writing on
	// every flush
	flushedIncidents map[uint64]int
}

type SaverOption func(s *Saver)

func WithStore(store *state.Store) SaverOption {
	return func(s *Saver) { s.store = store }
}

func WithSink(sink Sink) SaverOption {
	return func(s *Saver) { s.sink = sink }
}

func WithLogger(logger *log.Logger) SaverOption {
	return func(s *Saver) { s.logger = logger }
}

func NewSaver(opts ...SaverOption) *Saver {
	s := &Saver{
		logger:           log.Default().Named("saver"),
		flushedIncidents: make(map[uint64]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run triggers a save on every tick until the context is canceled,
// then performs one final blocking save.
func (s *Saver) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("final save")
			s.Flush()
			return
		case <-ticker.C:
			s.SaveNow()
		}
	}
}

// SaveNow persists all queued records unless a save is already in
// progress, in which case it returns immediately.
func (s *Saver) SaveNow() {
	if !s.mu.TryLock() {
		s.logger.Debug("save already in progress, skipping")
		return
	}
	defer s.mu.Unlock()
	s.save()
}

// Flush persists all queued records, waiting for a running save first.
func (s *Saver) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save()
}

func (s *Saver) save() {
	anchor := s.store.AnchorSnapshot()
	if anchor.Date == "" {
		// nothing observed yet, no artifact to write to
		return
	}
	for _, uid := range s.store.QueuedSessions() {
		queue := s.store.Queue(uid)
		laps := queue.Drain()
		if len(laps) > 0 {
			if err := s.sink.SaveLaps(anchor, laps); err != nil {
				s.logger.Error("saving laps failed, requeueing",
					log.Uint64("sessionUID", uid),
					log.Int("laps", len(laps)),
					log.ErrorField(err))
				queue.Requeue(laps)
				continue
			}
			s.logger.Info("laps saved",
				log.Uint64("sessionUID", uid), log.Int("laps", len(laps)))
		}
		s.saveIncidents(anchor, uid)
	}
}

func (s *Saver) saveIncidents(anchor model.WeekendAnchor, uid uint64) {
	incidents := s.store.Incidents(uid)
	done := s.flushedIncidents[uid]
	if len(incidents) <= done {
		return
	}
	if err := s.sink.SaveIncidents(anchor, uid, incidents[done:]); err != nil {
		s.logger.Error("saving incidents failed",
			log.Uint64("sessionUID", uid), log.ErrorField(err))
		return
	}
	s.flushedIncidents[uid] = len(incidents)
}

// ResetWeekend forgets the incident bookkeeping, used after re-anchor.
func (s *Saver) ResetWeekend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushedIncidents = make(map[uint64]int)
}
