// Package safetycar tracks (virtual) safety car deployment windows per
// session. Both the session decoder and the event decoder report
// transitions through the same Start/End functions, so duplicate
// notifications are naturally idempotent.
package safetycar

import (
	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

type sessionKey struct {
	sessionUID uint64
	kind       model.SafetyCarKind
}

type Tracker struct {
	logger *log.Logger
	// windows are stored by value; the open window of a kind is
	// addressed by its index, never by pointer.
	windows map[uint64][]model.SafetyCarWindow
	open    map[sessionKey]int
}

type Option func(t *Tracker)

func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		logger:  log.Default().Named("safetycar"),
		windows: make(map[uint64][]model.SafetyCarWindow),
		open:    make(map[sessionKey]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartWindow opens a window of the given kind. A start while a window
// of that kind is already open is a no-op, not a new window.
func (t *Tracker) StartWindow(
	sessionUID uint64, kind model.SafetyCarKind, at float64, source string,
) bool {
	key := sessionKey{sessionUID, kind}
	if _, isOpen := t.open[key]; isOpen {
		t.logger.Debug("window already open, ignoring start",
			log.String("kind", string(kind)), log.String("source", source))
		return false
	}
	t.windows[sessionUID] = append(t.windows[sessionUID], model.SafetyCarWindow{
		Kind:  kind,
		Start: at,
		Open:  true,
	})
	t.open[key] = len(t.windows[sessionUID]) - 1
	t.logger.Info("safety car window opened",
		log.String("kind", string(kind)),
		log.Float64("at", at),
		log.String("source", source))
	return true
}

// EndWindow closes the open window of the given kind. Without an open
// window this is a no-op.
func (t *Tracker) EndWindow(
	sessionUID uint64, kind model.SafetyCarKind, at float64, source string,
) bool {
	key := sessionKey{sessionUID, kind}
	idx, isOpen := t.open[key]
	if !isOpen {
		t.logger.Debug("no open window, ignoring end",
			log.String("kind", string(kind)), log.String("source", source))
		return false
	}
	w := t.windows[sessionUID][idx]
	w.End = at
	w.Open = false
	t.windows[sessionUID][idx] = w
	delete(t.open, key)
	t.logger.Info("safety car window closed",
		log.String("kind", string(kind)),
		log.Float64("at", at),
		log.String("source", source))
	return true
}

// CloseOpenWindows force-closes every still-open window of a session
// with an open-ended sentinel end, so overlap checks treat the window as
// covering the rest of the session.
func (t *Tracker) CloseOpenWindows(sessionUID uint64) {
	for _, kind := range []model.SafetyCarKind{model.SafetyCar, model.VirtualSafetyCar} {
		key := sessionKey{sessionUID, kind}
		idx, isOpen := t.open[key]
		if !isOpen {
			continue
		}
		w := t.windows[sessionUID][idx]
		w.End = model.OpenEndedWindowEnd
		w.Open = false
		t.windows[sessionUID][idx] = w
		delete(t.open, key)
	}
}

// Windows returns the recorded windows of a session in opening order.
func (t *Tracker) Windows(sessionUID uint64) []model.SafetyCarWindow {
	return t.windows[sessionUID]
}

// OverlapKind reports the kind of the first window overlapping the
// interval [start, end]. The epsilon absorbs float rounding at the
// interval edges; an open window extends to the end of the session.
func (t *Tracker) OverlapKind(
	sessionUID uint64, start, end, epsilon float64,
) (model.SafetyCarKind, bool) {
	for _, w := range t.windows[sessionUID] {
		wEnd := w.End
		if w.Open {
			wEnd = model.OpenEndedWindowEnd
		}
		if start+epsilon < wEnd && w.Start < end-epsilon {
			return w.Kind, true
		}
	}
	return "", false
}

// Reset discards all windows, used on weekend re-anchor.
func (t *Tracker) Reset() {
	t.windows = make(map[uint64][]model.SafetyCarWindow)
	t.open = make(map[sessionKey]int)
}
