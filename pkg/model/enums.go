package model

import "fmt"

// SessionClass groups the session type enum for standings ordering and
// telemetry filters.
type SessionClass int

const (
	ClassPractice SessionClass = iota
	ClassQualifying
	ClassRace
)

func (c SessionClass) String() string {
	switch c {
	case ClassQualifying:
		return "Q"
	case ClassRace:
		return "R"
	default:
		return "P"
	}
}

// session type enum as sent in the Session packet
const (
	SessionUnknown   = 0
	SessionP1        = 1
	SessionP2        = 2
	SessionP3        = 3
	SessionShortP    = 4
	SessionQ1        = 5
	SessionQ2        = 6
	SessionQ3        = 7
	SessionShortQ    = 8
	SessionOneShotQ  = 9
	SessionRace      = 10
	SessionRace2     = 11
	SessionTimeTrial = 12
)

var sessionTypeNames = map[uint8]string{
	SessionUnknown:   "Unknown",
	SessionP1:        "FP1",
	SessionP2:        "FP2",
	SessionP3:        "FP3",
	SessionShortP:    "Short Practice",
	SessionQ1:        "Q1",
	SessionQ2:        "Q2",
	SessionQ3:        "Q3",
	SessionShortQ:    "Short Qualifying",
	SessionOneShotQ:  "One-Shot Qualifying",
	SessionRace:      "Race",
	SessionRace2:     "Race 2",
	SessionTimeTrial: "Time Trial",
}

func SessionTypeName(t uint8) string {
	if name, ok := sessionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Session %d", t)
}

// ClassOfSession maps the session type enum onto practice/quali/race.
// Time trial is ordered by best lap like qualifying.
func ClassOfSession(t uint8) SessionClass {
	switch {
	case t >= SessionQ1 && t <= SessionOneShotQ, t == SessionTimeTrial:
		return ClassQualifying
	case t == SessionRace || t == SessionRace2:
		return ClassRace
	default:
		return ClassPractice
	}
}

var trackNames = map[int]string{
	0:  "Melbourne",
	1:  "Paul Ricard",
	2:  "Shanghai",
	3:  "Sakhir",
	4:  "Catalunya",
	5:  "Monaco",
	6:  "Montreal",
	7:  "Silverstone",
	8:  "Hockenheim",
	9:  "Hungaroring",
	10: "Spa",
	11: "Monza",
	12: "Singapore",
	13: "Suzuka",
	14: "Abu Dhabi",
	15: "Texas",
	16: "Brazil",
	17: "Austria",
	18: "Sochi",
	19: "Mexico",
	20: "Baku",
	21: "Sakhir Short",
	22: "Silverstone Short",
	23: "Texas Short",
	24: "Suzuka Short",
	25: "Hanoi",
	26: "Zandvoort",
}

// MaxTrackID is the upper bound of the valid track catalogue. A track id
// outside [0, MaxTrackID] never triggers a re-anchor.
const MaxTrackID = 26

func TrackName(id int) string {
	if name, ok := trackNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Track %d", id)
}

func ValidTrackID(id int) bool {
	return id >= 0 && id <= MaxTrackID
}

// visual tyre compound ids
var tyreCompoundNames = map[uint8]string{
	7:  "Inter",
	8:  "Wet",
	16: "Soft",
	17: "Medium",
	18: "Hard",
}

func TyreCompoundName(visual uint8) string {
	if name, ok := tyreCompoundNames[visual]; ok {
		return name
	}
	return fmt.Sprintf("C%d", visual)
}

var fuelMixNames = [...]string{"Lean", "Standard", "Rich", "Max"}

func FuelMixName(mix uint8) string {
	if int(mix) < len(fuelMixNames) {
		return fuelMixNames[mix]
	}
	return fmt.Sprintf("Mix %d", mix)
}

var penaltyNames = map[uint8]string{
	0:  "Drive through",
	1:  "Stop-go",
	2:  "Grid penalty",
	3:  "Penalty reminder",
	4:  "Time penalty",
	5:  "Warning",
	6:  "Disqualified",
	7:  "Removed from formation lap",
	8:  "Parked too long timer",
	9:  "Tyre regulations",
	10: "This lap invalidated",
	11: "This and next lap invalidated",
	12: "This lap invalidated without reason",
	13: "This and next lap invalidated without reason",
	14: "This and previous lap invalidated",
	15: "This and previous lap invalidated without reason",
	16: "Retired",
	17: "Black flag timer",
}

func PenaltyName(id uint8) string {
	if name, ok := penaltyNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Penalty %d", id)
}

var infringementNames = map[uint8]string{
	0:  "Blocking by slow driving",
	1:  "Blocking by wrong way driving",
	2:  "Reversing off the start line",
	3:  "Big collision",
	4:  "Small collision",
	5:  "Collision, failed to hand back position (single)",
	6:  "Collision, failed to hand back position (multiple)",
	7:  "Corner cutting, gained time",
	8:  "Corner cutting, overtake (single)",
	9:  "Corner cutting, overtake (multiple)",
	10: "Crossed pit exit lane",
	11: "Ignoring blue flags",
	12: "Ignoring yellow flags",
	13: "Ignoring drive through",
	14: "Too many drive throughs",
	15: "Drive through reminder, serve within n laps",
	16: "Drive through reminder, serve this lap",
	17: "Pit lane speeding",
	18: "Parked for too long",
	19: "Ignoring tyre regulations",
	20: "Too many penalties",
	21: "Multiple warnings",
	22: "Approaching disqualification",
	23: "Tyre regulations select (single)",
	24: "Tyre regulations select (multiple)",
	25: "Lap invalidated, corner cutting",
	26: "Lap invalidated, running wide",
	27: "Corner cutting, ran wide, minor time gain",
	28: "Corner cutting, ran wide, significant time gain",
	29: "Corner cutting, ran wide, extreme time gain",
	30: "Lap invalidated, wall riding",
	31: "Lap invalidated, flashback used",
	32: "Lap invalidated, reset to track",
	33: "Blocking the pitlane",
	34: "Jump start",
	35: "Safety car to car collision",
	36: "Safety car illegal overtake",
	37: "Safety car exceeding allowed pace",
	38: "Virtual safety car exceeding allowed pace",
	39: "Formation lap below allowed speed",
	40: "Retired mechanical failure",
	41: "Retired terminally damaged",
	42: "Safety car falling too far back",
	43: "Black flag timer",
	44: "Unserved stop-go penalty",
	45: "Unserved drive through penalty",
	46: "Engine component change",
	47: "Gearbox change",
	48: "League grid penalty",
	49: "Retry penalty",
	50: "Illegal time gain",
	51: "Mandatory pitstop",
}

func InfringementName(id uint8) string {
	if name, ok := infringementNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Infringement %d", id)
}

// InvalidatesLap reports whether a penalty type marks laps invalid
// (penalty types 10..15 cover current/next/previous lap combinations).
func InvalidatesLap(penaltyType uint8) bool {
	return penaltyType >= 10 && penaltyType <= 15
}

// InvalidatesNextLap covers "this and next lap" penalty types.
func InvalidatesNextLap(penaltyType uint8) bool {
	return penaltyType == 11 || penaltyType == 13
}

// InvalidatesPreviousLap covers "this and previous lap" penalty types.
func InvalidatesPreviousLap(penaltyType uint8) bool {
	return penaltyType == 14 || penaltyType == 15
}
