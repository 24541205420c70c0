package packet

import (
	"bytes"
	"fmt"
)

// SessionData carries the session packet fields the recorder consumes.
type SessionData struct {
	SessionType     uint8
	TrackID         int
	SafetyCarStatus uint8
}

func DecodeSession(payload []byte) (SessionData, error) {
	if len(payload) <= safetyCarStatusOffset {
		return SessionData{}, fmt.Errorf("%w: session payload needs %d bytes, got %d",
			ErrTruncated, safetyCarStatusOffset+1, len(payload))
	}
	return SessionData{
		SessionType:     payload[sessionTypeOffset],
		TrackID:         int(int8(payload[trackIDOffset])),
		SafetyCarStatus: payload[safetyCarStatusOffset],
	}, nil
}

// LapDataCar is one car slot of the lap data packet.
type LapDataCar struct {
	LastLapTime       float64 // seconds
	CurrentLapTime    float64 // seconds
	Sector1Ms         int
	Sector2Ms         int
	CarPosition       int
	CurrentLapNum     int
	PitStatus         uint8
	Sector            int
	CurrentLapInvalid bool
	Penalties         uint8
	DriverStatus      uint8
	ResultStatus      uint8
}

// Slot is the per-car result of decoding one record of a fixed-stride
// array. A slot either holds a value or the error that hit that car;
// callers fold over all slots and keep processing the successes.
type Slot[T any] struct {
	Index int
	Value T
	Err   error
}

func decodeSlots[T any](payload []byte, stride int, decode func([]byte) T) []Slot[T] {
	slots := make([]Slot[T], NumCars)
	for i := 0; i < NumCars; i++ {
		slots[i].Index = i
		rec := payload[min(i*stride, len(payload)):]
		if len(rec) < stride {
			slots[i].Err = fmt.Errorf("%w: car %d needs %d bytes, got %d",
				ErrTruncated, i, stride, len(rec))
			continue
		}
		slots[i].Value = decode(rec[:stride])
	}
	return slots
}

func DecodeLapData(payload []byte) []Slot[LapDataCar] {
	return decodeSlots(payload, LapDataStride, func(b []byte) LapDataCar {
		return LapDataCar{
			LastLapTime:       float64(f32(b[0:4])),
			CurrentLapTime:    float64(f32(b[4:8])),
			Sector1Ms:         int(u16(b[8:10])),
			Sector2Ms:         int(u16(b[10:12])),
			CarPosition:       int(b[44]),
			CurrentLapNum:     int(b[45]),
			PitStatus:         b[46],
			Sector:            int(b[47]),
			CurrentLapInvalid: b[48] != 0,
			Penalties:         b[49],
			DriverStatus:      b[51],
			ResultStatus:      b[52],
		}
	})
}

// ParticipantData is one car slot of the participants packet.
type ParticipantData struct {
	AIControlled bool
	DriverID     uint8
	TeamID       uint8
	RaceNumber   int
	Nationality  uint8
	Name         string
}

// DecodeParticipants skips the leading numActiveCars byte and decodes
// the fixed-stride participant array.
func DecodeParticipants(payload []byte) ([]Slot[ParticipantData], error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: participants payload empty", ErrTruncated)
	}
	slots := decodeSlots(payload[1:], ParticipantStride, func(b []byte) ParticipantData {
		return ParticipantData{
			AIControlled: b[0] != 0,
			DriverID:     b[1],
			TeamID:       b[2],
			RaceNumber:   int(b[3]),
			Nationality:  b[4],
			Name:         decodeName(b[5:53]),
		}
	})
	return slots, nil
}

// names are UTF-8, null terminated, max 48 bytes
func decodeName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// CarStatusData is one car slot of the car status packet.
type CarStatusData struct {
	FuelMix            uint8
	FuelRemainingLaps  float64
	TyresWear          [4]float64 // percent
	ActualTyreCompound uint8
	VisualTyreCompound uint8
	TyresAgeLaps       int
}

func DecodeCarStatus(payload []byte) []Slot[CarStatusData] {
	return decodeSlots(payload, CarStatusStride, func(b []byte) CarStatusData {
		d := CarStatusData{
			FuelMix:            b[2],
			FuelRemainingLaps:  float64(f32(b[13:17])),
			ActualTyreCompound: b[29],
			VisualTyreCompound: b[30],
			TyresAgeLaps:       int(b[31]),
		}
		for w := 0; w < 4; w++ {
			d.TyresWear[w] = float64(b[25+w])
		}
		return d
	})
}

// CarTelemetryData is one car slot of the car telemetry packet.
type CarTelemetryData struct {
	Speed     int // km/h
	Throttle  float64
	Brake     float64
	Gear      int
	EngineRPM int
	DRS       bool
}

func DecodeCarTelemetry(payload []byte) []Slot[CarTelemetryData] {
	return decodeSlots(payload, CarTelemetryStride, func(b []byte) CarTelemetryData {
		return CarTelemetryData{
			Speed:     int(u16(b[0:2])),
			Throttle:  float64(f32(b[2:6])),
			Brake:     float64(f32(b[10:14])),
			Gear:      int(int8(b[15])),
			EngineRPM: int(u16(b[16:18])),
			DRS:       b[18] != 0,
		}
	})
}

// PenaltyEvent is the fixed 7 byte union following a PENA event code.
type PenaltyEvent struct {
	PenaltyType      uint8
	InfringementType uint8
	VehicleIndex     int
	OtherVehicleIdx  int
	TimeSec          int
	LapNumber        int
	PlacesGained     int
}

// EventData is a decoded event packet: the 4 byte ASCII code plus the
// penalty union when the code is PENA.
type EventData struct {
	Code    string
	Penalty *PenaltyEvent
}

func DecodeEvent(payload []byte) (EventData, error) {
	if len(payload) < EventCodeLen {
		return EventData{}, fmt.Errorf("%w: event payload needs %d bytes, got %d",
			ErrTruncated, EventCodeLen, len(payload))
	}
	ev := EventData{Code: string(payload[:EventCodeLen])}
	if ev.Code != EventPenaltyIssued {
		return ev, nil
	}
	u := payload[EventCodeLen:]
	if len(u) < penaltyUnionLen {
		return EventData{}, fmt.Errorf("%w: penalty union needs %d bytes, got %d",
			ErrTruncated, penaltyUnionLen, len(u))
	}
	ev.Penalty = &PenaltyEvent{
		PenaltyType:      u[0],
		InfringementType: u[1],
		VehicleIndex:     int(u[2]),
		OtherVehicleIdx:  int(u[3]),
		TimeSec:          int(u[4]),
		LapNumber:        int(u[5]),
		PlacesGained:     int(u[6]),
	}
	return ev, nil
}
