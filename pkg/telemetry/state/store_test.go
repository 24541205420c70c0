//nolint:funlen // ok for tests
package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

func TestBeginSessionPreservesWeekendData(t *testing.T) {
	s := NewStore()
	s.ReAnchor(1, "2026-08-30", 11)
	s.SetParticipant(0, "VERSTAPPEN", 9)
	s.NoteSpeed(0, 330, model.ClassQualifying)
	s.Cars[0].CurrentLap = 5
	s.Cars[0].FuelMix = 2
	s.Cars[0].TyreCompound = "Soft"
	s.Cars[0].MixHistory = []MixChange{{Mix: 3, At: 100}}
	s.MarkLiveInvalid(model.SectorKey{SessionUID: 1, CarIndex: 0, LapNumber: 5})

	s.BeginSession(2)

	// live lap caches are gone, weekend lookups survive
	assert.Equal(t, 0, s.Cars[0].CurrentLap)
	assert.Empty(t, s.Cars[0].MixHistory)
	assert.Equal(t, "VERSTAPPEN", s.DriverName(0))
	assert.Equal(t, 330, s.MaxSpeedQuali[0])
	assert.Equal(t, uint64(2), s.SessionUID)
	assert.False(t, s.IsLapMarkedInvalid(
		model.SectorKey{SessionUID: 1, CarIndex: 0, LapNumber: 5}))
	// mix and compound carry over: the car did not change tyres because
	// a new session started
	assert.Equal(t, uint8(2), s.Cars[0].FuelMix)
	assert.Equal(t, "Soft", s.Cars[0].TyreCompound)
}

func TestBeginSessionKeepsConfirmedInvalidations(t *testing.T) {
	s := NewStore()
	key := model.SectorKey{SessionUID: 1, CarIndex: 0, LapNumber: 5}
	s.MarkLapInvalid(key)
	s.BeginSession(2)
	assert.True(t, s.IsLapMarkedInvalid(key))
}

func TestReAnchorDiscardsEverything(t *testing.T) {
	s := NewStore()
	s.ReAnchor(1, "2026-08-28", 11)
	s.SetParticipant(0, "LECLERC", 2)
	s.NoteSpeed(0, 340, model.ClassRace)
	s.AddIncident(1, model.IncidentRecord{LapNumber: 3})
	s.Queue(1).Enqueue(model.CompletedLapRecord{LapNumber: 1})

	s.ReAnchor(2, "2026-08-30", 5)

	assert.Empty(t, s.DriverNames)
	assert.Empty(t, s.MaxSpeedRace)
	assert.Empty(t, s.Incidents(1))
	assert.Equal(t, 0, s.Queue(1).Len())
	assert.Equal(t, "Monaco", s.Anchor.TrackName)
	assert.Equal(t, "2026-08-30", s.Anchor.Date)
	assert.Equal(t, "Car 0", s.DriverName(0))
}

func TestSanitizeName(t *testing.T) {
	s := NewStore()
	s.SetParticipant(1, "Pérez\x00\x01", 6)
	assert.Equal(t, "Pérez", s.DriverName(1))
	assert.Equal(t, "Pérez\x00\x01", s.RawDriverNames[1])
}

func TestNoteSpeedKeepsMaximum(t *testing.T) {
	s := NewStore()
	s.NoteSpeed(0, 310, model.ClassRace)
	s.NoteSpeed(0, 325, model.ClassRace)
	s.NoteSpeed(0, 300, model.ClassRace)
	s.NoteSpeed(0, 0, model.ClassRace)
	assert.Equal(t, 325, s.MaxSpeedRace[0])
	assert.Empty(t, s.MaxSpeedQuali)
}

func TestFinalizeSectorsWriteOnce(t *testing.T) {
	s := NewStore()
	key := model.SectorKey{SessionUID: 1, CarIndex: 0, LapNumber: 1}
	first := model.SectorRecord{Sector1Ms: 31000, LapValid: true}
	require.True(t, s.FinalizeSectors(key, first))
	assert.False(t, s.FinalizeSectors(key, model.SectorRecord{Sector1Ms: 99999}))

	rec, ok := s.SectorRecord(key)
	require.True(t, ok)
	assert.Equal(t, 31000, rec.Sector1Ms)
}

func TestSectorBufferMatches(t *testing.T) {
	b := SectorBuffer{LapNumber: 5, SessionUID: 1, Sector1Ms: 30000, Sector2Ms: 29000}
	assert.True(t, b.Matches(1, 5))
	assert.False(t, b.Matches(1, 6))
	assert.False(t, b.Matches(2, 5))
	assert.False(t, SectorBuffer{LapNumber: 5, SessionUID: 1}.Matches(1, 5))
}

func TestRecordQueue(t *testing.T) {
	q := NewRecordQueue()
	q.Enqueue(model.CompletedLapRecord{LapNumber: 1})
	q.Enqueue(model.CompletedLapRecord{LapNumber: 2})

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())

	// after a failed save the records go back to the front
	q.Enqueue(model.CompletedLapRecord{LapNumber: 3})
	q.Requeue(drained)
	again := q.Drain()
	require.Len(t, again, 3)
	assert.Equal(t, 1, again[0].LapNumber)
	assert.Equal(t, 3, again[2].LapNumber)
}
