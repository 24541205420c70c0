package packet

// protocol constants of the 2020 telemetry wire format
const (
	HeaderLen = 24
	NumCars   = 22

	// per-car record strides inside the packet payloads
	LapDataStride      = 53
	ParticipantStride  = 54
	CarTelemetryStride = 58
	CarStatusStride    = 60

	// byte offsets inside the session payload
	sessionTypeOffset     = 6
	trackIDOffset         = 7
	marshalZoneCount      = 21
	marshalZoneStride     = 5
	safetyCarStatusOffset = 19 + marshalZoneCount*marshalZoneStride // 124

	// event payload: 4 byte ASCII code followed by a code specific union
	EventCodeLen    = 4
	penaltyUnionLen = 7
)

// packet ids
const (
	IDMotion              = 0
	IDSession             = 1
	IDLapData             = 2
	IDEvent               = 3
	IDParticipants        = 4
	IDCarSetups           = 5
	IDCarTelemetry        = 6
	IDCarStatus           = 7
	IDFinalClassification = 8
	IDLobbyInfo           = 9
)

// event codes
const (
	EventSessionStarted  = "SSTA"
	EventSessionEnded    = "SEND"
	EventPenaltyIssued   = "PENA"
	EventSafetyCarDeploy = "SCDP"
	EventSafetyCarEnding = "SCED"
	EventVirtualSCDeploy = "VSCD"
	EventVirtualSCEnding = "VSCE"
)

// safety car status codes in the session packet
const (
	SafetyCarNone    = 0
	SafetyCarFull    = 1
	SafetyCarVirtual = 2
)
