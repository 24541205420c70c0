// Package packet decodes the fixed-layout little-endian telemetry
// datagrams of the 2020 wire format. All decoders are pure functions on
// byte slices; truncated input yields a typed error and no partial data.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrTruncated = errors.New("datagram truncated")

// Header is the 24 byte envelope common to every packet.
type Header struct {
	PacketFormat      uint16
	GameMajorVersion  uint8
	GameMinorVersion  uint8
	PacketVersion     uint8
	PacketID          uint8
	SessionUID        uint64
	SessionTime       float64 // seconds, monotonic within a session
	FrameID           uint32
	PlayerCarIndex    uint8
	SecondaryCarIndex uint8
}

// DecodeHeader parses the packet envelope. Datagrams shorter than the
// header are dropped as a whole.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d",
			ErrTruncated, HeaderLen, len(b))
	}
	return Header{
		PacketFormat:      binary.LittleEndian.Uint16(b[0:2]),
		GameMajorVersion:  b[2],
		GameMinorVersion:  b[3],
		PacketVersion:     b[4],
		PacketID:          b[5],
		SessionUID:        binary.LittleEndian.Uint64(b[6:14]),
		SessionTime:       float64(f32(b[14:18])),
		FrameID:           binary.LittleEndian.Uint32(b[18:22]),
		PlayerCarIndex:    b[22],
		SecondaryCarIndex: b[23],
	}, nil
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func u16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}
