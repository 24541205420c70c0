// Package state holds the process wide mutable telemetry state: live
// per-car caches, per-session derived data and the weekend anchor. One
// Store instance is passed by reference to every decoder. It is
// single-writer (the ingestion loop) and not thread safe by contract,
// except for the record queues, the incidents and the anchor snapshot,
// which the save path reads from its own goroutine.
package state

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
)

// SectorBuffer caches the live sector 1/2 durations together with the
// lap and session they belong to. Buffers tagged with a different
// lap/session than a closing lap are rejected at reconciliation time.
type SectorBuffer struct {
	LapNumber  int
	SessionUID uint64
	Sector1Ms  int
	Sector2Ms  int
}

func (b SectorBuffer) Matches(sessionUID uint64, lapNumber int) bool {
	return b.SessionUID == sessionUID && b.LapNumber == lapNumber &&
		b.Sector1Ms > 0 && b.Sector2Ms > 0
}

// MixChange is one fuel mix transition observed since the last lap close.
type MixChange struct {
	Mix uint8
	At  float64 // session time
}

// LiveCar is the per-car slice of the store, overwritten in place.
type LiveCar struct {
	CurrentLap    int
	LastLapTimeMs int
	Sectors       SectorBuffer
	HasWear       bool
	Wear          [4]float64
	TyreCompound  string
	TyreAge       int
	FuelMix       uint8
	MixAtLapStart uint8
	MixHistory    []MixChange
}

type Store struct {
	Cars [packet.NumCars]LiveCar

	// weekend scoped lookups, survive session changes
	DriverNames    map[int]string
	RawDriverNames map[int]string
	TeamIDs        map[int]uint8
	MaxSpeedQuali  map[int]int
	MaxSpeedRace   map[int]int

	SessionUID          uint64 // last observed session
	SessionType         uint8
	LastSafetyCarStatus uint8

	Anchor model.WeekendAnchor

	sectorRecords    map[model.SectorKey]model.SectorRecord
	confirmedInvalid map[model.SectorKey]struct{}
	liveInvalid      map[model.SectorKey]struct{}
	sessionTypes     map[uint64]uint8

	// guards incidents and the anchor against the save goroutine
	weekendMu sync.Mutex
	incidents map[uint64][]model.IncidentRecord

	queueMu sync.Mutex
	queues  map[uint64]*RecordQueue
}

func NewStore() *Store {
	s := &Store{}
	s.resetWeekend()
	return s
}

func (s *Store) resetWeekend() {
	s.Cars = [packet.NumCars]LiveCar{}
	s.DriverNames = make(map[int]string)
	s.RawDriverNames = make(map[int]string)
	s.TeamIDs = make(map[int]uint8)
	s.MaxSpeedQuali = make(map[int]int)
	s.MaxSpeedRace = make(map[int]int)
	s.sectorRecords = make(map[model.SectorKey]model.SectorRecord)
	s.confirmedInvalid = make(map[model.SectorKey]struct{})
	s.liveInvalid = make(map[model.SectorKey]struct{})
	s.sessionTypes = make(map[uint64]uint8)
	s.weekendMu.Lock()
	s.incidents = make(map[uint64][]model.IncidentRecord)
	s.weekendMu.Unlock()
	s.queueMu.Lock()
	s.queues = make(map[uint64]*RecordQueue)
	s.queueMu.Unlock()
	s.LastSafetyCarStatus = packet.SafetyCarNone
}

// BeginSession clears only the transient per-lap live caches so a new
// session of the same weekend starts from a clean slate. Driver names,
// teams, max speeds and finalized per-session data survive.
func (s *Store) BeginSession(sessionUID uint64) {
	for i := range s.Cars {
		mix := s.Cars[i].FuelMix
		compound := s.Cars[i].TyreCompound
		s.Cars[i] = LiveCar{FuelMix: mix, MixAtLapStart: mix, TyreCompound: compound}
	}
	s.liveInvalid = make(map[model.SectorKey]struct{})
	s.SessionUID = sessionUID
	s.LastSafetyCarStatus = packet.SafetyCarNone
}

// ReAnchor starts a new weekend: everything is discarded and the given
// session becomes the anchor used to name output artifacts from now on.
func (s *Store) ReAnchor(sessionUID uint64, date string, trackID int) {
	s.resetWeekend()
	s.SessionUID = sessionUID
	s.weekendMu.Lock()
	s.Anchor = model.WeekendAnchor{
		SessionUID: sessionUID,
		Date:       date,
		TrackID:    trackID,
		TrackName:  model.TrackName(trackID),
	}
	s.weekendMu.Unlock()
}

// AnchorSnapshot returns the current weekend anchor, safe to call from
// the save goroutine while the ingestion loop may re-anchor.
func (s *Store) AnchorSnapshot() model.WeekendAnchor {
	s.weekendMu.Lock()
	defer s.weekendMu.Unlock()
	return s.Anchor
}

// DriverName returns the display name of a car slot, with a stable
// fallback before the first participants packet arrived.
func (s *Store) DriverName(carIdx int) string {
	if name, ok := s.DriverNames[carIdx]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Car %d", carIdx)
}

func (s *Store) TeamID(carIdx int) (uint8, bool) {
	id, ok := s.TeamIDs[carIdx]
	return id, ok
}

// SetParticipant stores the raw and the display-sanitized driver name
// plus the team of a car slot. Names survive session changes.
func (s *Store) SetParticipant(carIdx int, name string, teamID uint8) {
	if name == "" {
		return
	}
	s.RawDriverNames[carIdx] = name
	s.DriverNames[carIdx] = sanitizeName(name)
	s.TeamIDs[carIdx] = teamID
}

// online names may contain control characters and stray telemetry bytes
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, name)
}

// NoteSpeed keeps the weekend-wide top speed per car, split by session
// class (practice speeds count towards the qualifying set).
func (s *Store) NoteSpeed(carIdx, speed int, class model.SessionClass) {
	if speed <= 0 {
		return
	}
	target := s.MaxSpeedQuali
	if class == model.ClassRace {
		target = s.MaxSpeedRace
	}
	if speed > target[carIdx] {
		target[carIdx] = speed
	}
}

// RecordSessionType remembers the session type per session UID so lap
// records of an older session keep their label after a session change.
func (s *Store) RecordSessionType(sessionUID uint64, sessionType uint8) {
	s.SessionType = sessionType
	s.sessionTypes[sessionUID] = sessionType
}

func (s *Store) SessionTypeOf(sessionUID uint64) uint8 {
	return s.sessionTypes[sessionUID]
}

// FinalizeSectors stores the validity-finalized sector record for a lap.
// Records are write-once: a second finalize for the same key is refused.
func (s *Store) FinalizeSectors(key model.SectorKey, rec model.SectorRecord) bool {
	if _, exists := s.sectorRecords[key]; exists {
		return false
	}
	s.sectorRecords[key] = rec
	return true
}

func (s *Store) SectorRecord(key model.SectorKey) (model.SectorRecord, bool) {
	rec, ok := s.sectorRecords[key]
	return rec, ok
}

// SectorRecords returns all finalized records of one session.
func (s *Store) SectorRecords(sessionUID uint64) map[model.SectorKey]model.SectorRecord {
	out := make(map[model.SectorKey]model.SectorRecord)
	for k, v := range s.sectorRecords {
		if k.SessionUID == sessionUID {
			out[k] = v
		}
	}
	return out
}

// MarkLapInvalid records a penalty-driven (confirmed) lap invalidation.
func (s *Store) MarkLapInvalid(key model.SectorKey) {
	s.confirmedInvalid[key] = struct{}{}
}

// MarkLiveInvalid records a provisional invalidation from in-lap
// telemetry flags. Cleared on session change.
func (s *Store) MarkLiveInvalid(key model.SectorKey) {
	s.liveInvalid[key] = struct{}{}
}

func (s *Store) IsLapMarkedInvalid(key model.SectorKey) bool {
	if _, ok := s.confirmedInvalid[key]; ok {
		return true
	}
	_, ok := s.liveInvalid[key]
	return ok
}

func (s *Store) AddIncident(sessionUID uint64, rec model.IncidentRecord) {
	s.weekendMu.Lock()
	defer s.weekendMu.Unlock()
	s.incidents[sessionUID] = append(s.incidents[sessionUID], rec)
}

// Incidents returns a copy of the session's incidents; the save path
// iterates it while the ingestion loop may append.
func (s *Store) Incidents(sessionUID uint64) []model.IncidentRecord {
	s.weekendMu.Lock()
	defer s.weekendMu.Unlock()
	return slices.Clone(s.incidents[sessionUID])
}

// Queue returns the per-session record queue, creating it on first use.
// Safe for concurrent use by the ingestion loop and the save path.
func (s *Store) Queue(sessionUID uint64) *RecordQueue {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	q, ok := s.queues[sessionUID]
	if !ok {
		q = NewRecordQueue()
		s.queues[sessionUID] = q
	}
	return q
}

// QueuedSessions lists the sessions that have a record queue.
func (s *Store) QueuedSessions() []uint64 {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	out := make([]uint64, 0, len(s.queues))
	for uid := range s.queues {
		out = append(out, uid)
	}
	return out
}
