//nolint:thelper,funlen // ok for tests
package lap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/safetycar"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/standings"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/validity"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/packet"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/state"
)

const uid = uint64(4711)

type fixture struct {
	proc    *Processor
	store   *state.Store
	tracker *safetycar.Tracker
	records []model.CompletedLapRecord
}

func newFixture() *fixture {
	f := &fixture{
		store:   state.NewStore(),
		tracker: safetycar.NewTracker(),
	}
	f.store.BeginSession(uid)
	f.store.RecordSessionType(uid, 10) // race
	engine := validity.NewEngine(
		validity.WithStore(f.store),
		validity.WithTracker(f.tracker))
	f.proc = NewProcessor(
		WithStore(f.store),
		WithEngine(engine),
		WithAggregator(standings.NewAggregator()),
		WithLapHook(func(rec model.CompletedLapRecord) {
			f.records = append(f.records, rec)
		}))
	return f
}

func header(sessionTime float64) *packet.Header {
	return &packet.Header{SessionUID: uid, SessionTime: sessionTime}
}

func slot(carIdx int, d packet.LapDataCar) []packet.Slot[packet.LapDataCar] {
	return []packet.Slot[packet.LapDataCar]{{Index: carIdx, Value: d}}
}

// driveLap feeds the typical packet sequence of one closing lap: an
// in-lap update carrying the live sector times, then the closure packet
// on which the lap counter has advanced.
func (f *fixture) driveLap(
	carIdx, lapNo, s1Ms, s2Ms int, lastLap float64, endTime float64,
) {
	f.proc.ProcessLapData(header(endTime-5), slot(carIdx, packet.LapDataCar{
		CurrentLapNum:  lapNo,
		CurrentLapTime: lastLap - 5,
		Sector1Ms:      s1Ms,
		Sector2Ms:      s2Ms,
	}))
	f.proc.ProcessLapData(header(endTime+2), slot(carIdx, packet.LapDataCar{
		CurrentLapNum:  lapNo + 1,
		CurrentLapTime: 2.0,
		LastLapTime:    lastLap,
	}))
}

func TestLapClosure(t *testing.T) {
	f := newFixture()
	f.driveLap(3, 1, 31200, 29800, 95.5, 200)

	require.Len(t, f.records, 1)
	rec := f.records[0]
	assert.Equal(t, uid, rec.SessionUID)
	assert.Equal(t, 3, rec.CarIndex)
	assert.Equal(t, 1, rec.LapNumber)
	assert.Equal(t, 95500, rec.LapTimeMs)
	assert.Equal(t, 31200, rec.Sector1Ms)
	assert.Equal(t, 29800, rec.Sector2Ms)
	assert.Equal(t, 95500-31200-29800, rec.Sector3Ms)
	assert.Equal(t, "Race", rec.SessionType)
	assert.Equal(t, "Car 3", rec.Driver)
	assert.InDelta(t, 200.0, rec.EndTime, 0.001)
	assert.InDelta(t, 200.0-95.5, rec.StartTime(), 0.001)
	assert.Equal(t, "", rec.SafetyCarTag)

	// record is queued for the sink
	assert.Equal(t, 1, f.store.Queue(uid).Len())
}

func TestSectorSumClamp(t *testing.T) {
	// when buffered sectors slightly exceed the final lap time, s3 is
	// clamped to zero instead of going negative
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // ok for tests
	for i := 0; i < 50; i++ {
		f := newFixture()
		lapMs := 80000 + rng.Intn(40000)
		s1 := lapMs/2 + rng.Intn(500)
		s2 := lapMs - s1 + rng.Intn(300) // drifts past the lap time
		f.driveLap(0, 1, s1, s2, float64(lapMs)/1000.0, 300)

		require.Len(t, f.records, 1)
		rec := f.records[0]
		assert.GreaterOrEqual(t, rec.Sector3Ms, 0)
		if s1+s2 <= lapMs {
			assert.Equal(t, lapMs-s1-s2, rec.Sector3Ms)
		} else {
			assert.Equal(t, 0, rec.Sector3Ms)
		}
	}
}

func TestDropWithoutMatchingSectorBuffer(t *testing.T) {
	f := newFixture()
	// buffer belongs to lap 1, but lap 2 closes next
	f.proc.ProcessLapData(header(100), slot(0, packet.LapDataCar{
		CurrentLapNum: 1, Sector1Ms: 30000, Sector2Ms: 30000,
	}))
	f.proc.ProcessLapData(header(195), slot(0, packet.LapDataCar{
		CurrentLapNum: 2, CurrentLapTime: 90.0,
	}))
	f.proc.ProcessLapData(header(290), slot(0, packet.LapDataCar{
		CurrentLapNum: 3, CurrentLapTime: 1.0, LastLapTime: 93.0,
	}))

	// no partial record: the whole lap 2 is dropped
	assert.Empty(t, f.records)
	assert.Equal(t, 0, f.store.Queue(uid).Len())
}

func TestImplausibleLapTimesIgnored(t *testing.T) {
	f := newFixture()
	// counter-reset artifact: tiny last lap time
	f.driveLap(0, 1, 30000, 30000, 5.0, 100)
	assert.Empty(t, f.records)

	f = newFixture()
	// corrupt telemetry: 10 minute lap
	f.driveLap(0, 1, 30000, 30000, 600.0, 700)
	assert.Empty(t, f.records)
}

func TestSafetyCarTag(t *testing.T) {
	f := newFixture()
	f.tracker.StartWindow(uid, model.VirtualSafetyCar, 150, "test")
	f.tracker.EndWindow(uid, model.VirtualSafetyCar, 170, "test")

	f.driveLap(0, 1, 31000, 30000, 95.0, 200) // lap covers [105, 200]
	require.Len(t, f.records, 1)
	assert.Equal(t, "VSC", f.records[0].SafetyCarTag)

	rec, ok := f.store.SectorRecord(model.SectorKey{
		SessionUID: uid, CarIndex: 0, LapNumber: 1,
	})
	require.True(t, ok)
	assert.False(t, rec.LapValid)
	// sectors themselves stay valid, only the lap is tagged
	assert.Equal(t, [3]bool{true, true, true}, rec.SectorValid)
}

func TestLiveInvalidFlag(t *testing.T) {
	f := newFixture()
	f.proc.ProcessLapData(header(100), slot(0, packet.LapDataCar{
		CurrentLapNum:     1,
		Sector1Ms:         31000,
		Sector2Ms:         30000,
		CurrentLapInvalid: true,
	}))
	f.proc.ProcessLapData(header(200), slot(0, packet.LapDataCar{
		CurrentLapNum: 2, CurrentLapTime: 2.0, LastLapTime: 95.0,
	}))

	require.Len(t, f.records, 1)
	rec, ok := f.store.SectorRecord(model.SectorKey{
		SessionUID: uid, CarIndex: 0, LapNumber: 1,
	})
	require.True(t, ok)
	assert.False(t, rec.LapValid)
	assert.Equal(t, [3]bool{false, false, false}, rec.SectorValid)
}

func TestDuplicateClosureKeepsFirst(t *testing.T) {
	f := newFixture()
	f.driveLap(0, 1, 31000, 30000, 95.0, 200)
	require.Len(t, f.records, 1)

	// the same closure replayed must not emit a second record
	f.store.Cars[0].CurrentLap = 1
	f.store.Cars[0].Sectors = state.SectorBuffer{
		LapNumber: 1, SessionUID: uid, Sector1Ms: 32000, Sector2Ms: 31000,
	}
	f.proc.ProcessLapData(header(210), slot(0, packet.LapDataCar{
		CurrentLapNum: 2, CurrentLapTime: 2.0, LastLapTime: 96.0,
	}))
	assert.Len(t, f.records, 1)

	rec, _ := f.store.SectorRecord(model.SectorKey{
		SessionUID: uid, CarIndex: 0, LapNumber: 1,
	})
	assert.Equal(t, 31000, rec.Sector1Ms)
}

func TestFuelMixAttribution(t *testing.T) {
	f := newFixture()
	car := &f.store.Cars[0]
	car.FuelMix = 1
	car.MixAtLapStart = 1

	f.proc.ProcessLapData(header(150), slot(0, packet.LapDataCar{
		CurrentLapNum: 1, CurrentLapTime: 45.0,
		Sector1Ms: 31000, Sector2Ms: 30000,
	}))
	// lap 1 covers [105, 200]; standard until 110, rich afterwards
	car.MixHistory = append(car.MixHistory, state.MixChange{Mix: 2, At: 110})
	car.FuelMix = 2
	f.proc.ProcessLapData(header(202), slot(0, packet.LapDataCar{
		CurrentLapNum: 2, CurrentLapTime: 2.0, LastLapTime: 95.0,
	}))

	require.Len(t, f.records, 1)
	assert.Equal(t, "Rich", f.records[0].FuelMix)
	assert.Equal(t, "Rich (5s)", f.records[0].MixHistory)
	// the history only ever covers one lap
	assert.Empty(t, f.store.Cars[0].MixHistory)
	assert.Equal(t, uint8(2), f.store.Cars[0].MixAtLapStart)
}

func TestFuelMixMajorityWins(t *testing.T) {
	f := newFixture()
	car := &f.store.Cars[0]
	car.FuelMix = 1
	car.MixAtLapStart = 1

	f.proc.ProcessLapData(header(150), slot(0, packet.LapDataCar{
		CurrentLapNum: 1, CurrentLapTime: 45.0,
		Sector1Ms: 31000, Sector2Ms: 30000,
	}))
	// lap covers [105, 200]: standard 105-190, rich only the last 10s
	car.MixHistory = append(car.MixHistory, state.MixChange{Mix: 2, At: 190})
	car.FuelMix = 2
	f.proc.ProcessLapData(header(202), slot(0, packet.LapDataCar{
		CurrentLapNum: 2, CurrentLapTime: 2.0, LastLapTime: 95.0,
	}))

	require.Len(t, f.records, 1)
	assert.Equal(t, "Standard", f.records[0].FuelMix)
}
