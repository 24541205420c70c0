package model

// SafetyCarKind discriminates the two window kinds tracked per session.
type SafetyCarKind string

const (
	SafetyCar        SafetyCarKind = "SC"
	VirtualSafetyCar SafetyCarKind = "VSC"
)

// OpenEndedWindowEnd marks a window that was force-closed at session end.
// Overlap checks treat such a window as covering the rest of the session.
const OpenEndedWindowEnd = 1 << 40

// SafetyCarWindow is one (virtual) safety car interval. A window without
// an end time is open. Windows are stored by value and updated by index,
// they are never shared outside the tracker.
type SafetyCarWindow struct {
	Kind  SafetyCarKind `json:"kind"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Open  bool          `json:"open"`
}

// CompletedLapRecord is the unit emitted downstream once a lap has been
// closed and its sectors reconciled. Immutable after construction.
type CompletedLapRecord struct {
	SessionUID   uint64     `json:"sessionUid"`
	SessionType  string     `json:"sessionType"`
	CarIndex     int        `json:"carIndex"`
	Driver       string     `json:"driver"`
	LapNumber    int        `json:"lapNumber"`
	TyreCompound string     `json:"tyreCompound"`
	LapTimeMs    int        `json:"lapTimeMs"`
	WheelWear    [4]float64 `json:"wheelWear"`
	EndTime      float64    `json:"endTime"` // session relative, seconds
	SafetyCarTag string     `json:"safetyCarTag"`
	TyreAge      int        `json:"tyreAge"`
	Sector1Ms    int        `json:"sector1Ms"`
	Sector2Ms    int        `json:"sector2Ms"`
	Sector3Ms    int        `json:"sector3Ms"`
	FuelMix      string     `json:"fuelMix"`
	MixHistory   string     `json:"mixHistory"`
}

// StartTime is the inferred begin of the lap interval.
func (r *CompletedLapRecord) StartTime() float64 {
	return r.EndTime - float64(r.LapTimeMs)/1000.0
}

type IncidentRecord struct {
	LapNumber     int     `json:"lapNumber"`
	CarIndex      int     `json:"carIndex"`
	Infringement  string  `json:"infringement"`
	Penalty       string  `json:"penalty"`
	TimeSec       int     `json:"timeSec"`
	PlacesGained  int     `json:"placesGained"`
	OtherCarIndex int     `json:"otherCarIndex"`
	SessionTime   float64 `json:"sessionTime"`
}

// SectorRecord holds the finalized sector times and validity flags of
// one lap. Write-once per key.
type SectorRecord struct {
	Sector1Ms   int
	Sector2Ms   int
	Sector3Ms   int
	SectorValid [3]bool
	LapValid    bool
}

// SectorKey addresses finalized sector records and invalidation marks.
type SectorKey struct {
	SessionUID uint64
	CarIndex   int
	LapNumber  int
}

// DriverAggregate accumulates per (session, car) standing data. Laps and
// best time are monotonic.
type DriverAggregate struct {
	Laps        int
	TotalTimeMs int64
	BestTimeMs  int
}

// WeekendAnchor identifies the output artifact of one race weekend.
// Practice, qualifying and race sessions share an anchor; it is replaced
// only by an explicit re-anchor.
type WeekendAnchor struct {
	SessionUID uint64
	Date       string // local date, YYYY-MM-DD
	TrackID    int
	TrackName  string
}
