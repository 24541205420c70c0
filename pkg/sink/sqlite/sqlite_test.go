//nolint:funlen // ok for tests
package sqlite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

func testAnchor() model.WeekendAnchor {
	return model.WeekendAnchor{
		SessionUID: 4711,
		Date:       "2026-08-30",
		TrackID:    11,
		TrackName:  "Monza",
	}
}

func sampleLap(carIdx, lapNo int) model.CompletedLapRecord {
	return model.CompletedLapRecord{
		SessionUID:   4711,
		SessionType:  "Race",
		CarIndex:     carIdx,
		Driver:       "HAMILTON",
		LapNumber:    lapNo,
		TyreCompound: "Medium",
		LapTimeMs:    91500,
		WheelWear:    [4]float64{12.5, 13.0, 8.25, 8.75},
		EndTime:      1234.625,
		SafetyCarTag: "VSC",
		TyreAge:      7,
		Sector1Ms:    30100,
		Sector2Ms:    31200,
		Sector3Ms:    30200,
		FuelMix:      "Standard",
		MixHistory:   "Rich (5s), Standard (80s)",
	}
}

func TestFilename(t *testing.T) {
	s := NewSink(WithOutputDir("/data"))
	anchor := testAnchor()
	assert.Equal(t, "/data/2026-08-30_monza.db", s.Filename(anchor))

	anchor.TrackName = "Yas Marina"
	assert.Equal(t, "/data/2026-08-30_yas-marina.db", s.Filename(anchor))

	pinned := NewSink(WithFile("/tmp/x.db"))
	assert.Equal(t, "/tmp/x.db", pinned.Filename(anchor))
}

func TestLapRoundTrip(t *testing.T) {
	s := NewSink(WithOutputDir(t.TempDir()))
	defer s.Close()

	laps := []model.CompletedLapRecord{
		sampleLap(0, 1),
		sampleLap(0, 2),
		sampleLap(3, 1),
	}
	require.NoError(t, s.SaveLaps(testAnchor(), laps))

	got, err := s.ReadLaps(testAnchor(), 4711)
	require.NoError(t, err)
	if diff := cmp.Diff(laps, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateLapsAreIgnored(t *testing.T) {
	s := NewSink(WithOutputDir(t.TempDir()))
	defer s.Close()

	first := sampleLap(0, 1)
	require.NoError(t, s.SaveLaps(testAnchor(), []model.CompletedLapRecord{first}))

	// a retried save of the same (session, car, lap) keeps the first row
	changed := first
	changed.LapTimeMs = 99999
	require.NoError(t, s.SaveLaps(testAnchor(), []model.CompletedLapRecord{changed}))

	got, err := s.ReadLaps(testAnchor(), 4711)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 91500, got[0].LapTimeMs)
}

func TestReadSessions(t *testing.T) {
	s := NewSink(WithOutputDir(t.TempDir()))
	defer s.Close()

	raceLap := sampleLap(0, 1)
	qualiLap := sampleLap(0, 1)
	qualiLap.SessionUID = 4710
	require.NoError(t, s.SaveLaps(testAnchor(), []model.CompletedLapRecord{raceLap}))
	require.NoError(t, s.SaveLaps(testAnchor(), []model.CompletedLapRecord{qualiLap}))

	uids, err := s.ReadSessions(testAnchor())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{4710, 4711}, uids)
}

func TestSaveIncidents(t *testing.T) {
	s := NewSink(WithOutputDir(t.TempDir()))
	defer s.Close()

	incidents := []model.IncidentRecord{
		{
			LapNumber:    12,
			CarIndex:     3,
			Infringement: "Corner cutting",
			Penalty:      "Time penalty",
			TimeSec:      5,
			SessionTime:  987.5,
		},
	}
	require.NoError(t, s.SaveIncidents(testAnchor(), 4711, incidents))
	// incidents have no natural key, a retry appends
	require.NoError(t, s.SaveIncidents(testAnchor(), 4711, incidents))
}

func TestAnchorChangeSwitchesFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(WithOutputDir(dir))
	defer s.Close()

	require.NoError(t, s.SaveLaps(testAnchor(), []model.CompletedLapRecord{sampleLap(0, 1)}))

	next := model.WeekendAnchor{
		SessionUID: 9000,
		Date:       "2026-09-06",
		TrackID:    5,
		TrackName:  "Monaco",
	}
	monacoLap := sampleLap(0, 1)
	monacoLap.SessionUID = 9000
	require.NoError(t, s.SaveLaps(next, []model.CompletedLapRecord{monacoLap}))

	// the second weekend's database only knows the second weekend's laps
	uids, err := s.ReadSessions(next)
	require.NoError(t, err)
	assert.Equal(t, []uint64{9000}, uids)

	uids, err = s.ReadSessions(testAnchor())
	require.NoError(t, err)
	assert.Equal(t, []uint64{4711}, uids)
}
