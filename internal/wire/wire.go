// internal/wire/wire.go

// Package wire implements the compact UDP framing shared with upstream
// control tooling. A frame is a board address followed by (offset, value)
// pairs, every field a 16-bit little-endian integer. Setpoint values are
// signed two's complement; addresses and offsets are unsigned.
package wire

import (
	"encoding/binary"
	"errors"
)

// Reserved addresses on the command socket.
const (
	Broadcast        uint16 = 0   // accepts only estop / reset-estop
	HeartbeatAddress uint16 = 240 // pure heartbeat sink, never a physical board
)

// Reserved offset codes on the telemetry socket. Offsets at or above
// ReadFailStart mark the following value as protocol metadata rather
// than a register value.
const (
	ReadFailStart uint16 = 10000 // value = first offset of a failed read span
	ReadFailEnd   uint16 = 10001 // value = last offset of a failed read span
	WriteFail     uint16 = 10002 // value = offset of a failed write
)

// ErrMalformed reports a frame whose length does not fit the
// address + pairs shape. Malformed frames get no reply.
var ErrMalformed = errors.New("wire: malformed frame")

// Pair is one (offset, value) element of a frame.
type Pair struct {
	Offset uint16
	Value  uint16
}

// Record is a decoded frame: one board address plus its pairs.
type Record struct {
	Addr  uint16
	Pairs []Pair
}

// Encode renders a record to its wire form.
func Encode(rec Record) []byte {
	buf := make([]byte, 2+4*len(rec.Pairs))
	binary.LittleEndian.PutUint16(buf[0:2], rec.Addr)
	for i, p := range rec.Pairs {
		binary.LittleEndian.PutUint16(buf[2+4*i:], p.Offset)
		binary.LittleEndian.PutUint16(buf[4+4*i:], p.Value)
	}
	return buf
}

// Decode parses a frame. Length must be at least the two address bytes
// and the remainder must divide into whole pairs.
func Decode(b []byte) (Record, error) {
	if len(b) < 2 || (len(b)-2)%4 != 0 {
		return Record{}, ErrMalformed
	}
	rec := Record{Addr: binary.LittleEndian.Uint16(b[0:2])}
	n := (len(b) - 2) / 4
	if n > 0 {
		rec.Pairs = make([]Pair, n)
		for i := 0; i < n; i++ {
			rec.Pairs[i].Offset = binary.LittleEndian.Uint16(b[2+4*i:])
			rec.Pairs[i].Value = binary.LittleEndian.Uint16(b[4+4*i:])
		}
	}
	return rec, nil
}

// Telemetry builds the outbound record mirroring a successful read:
// each register read gets an (offset, value) pair.
func Telemetry(addr uint16, start uint16, values []uint16) Record {
	pairs := make([]Pair, len(values))
	for i, v := range values {
		pairs[i] = Pair{Offset: start + uint16(i), Value: v}
	}
	return Record{Addr: addr, Pairs: pairs}
}

// ReadError builds the outbound record for a failed read span.
func ReadError(addr uint16, start, end uint16) Record {
	return Record{Addr: addr, Pairs: []Pair{
		{Offset: ReadFailStart, Value: start},
		{Offset: ReadFailEnd, Value: end},
	}}
}

// WriteAck builds the outbound record for an acknowledged write.
func WriteAck(addr uint16, offset, value uint16) Record {
	return Record{Addr: addr, Pairs: []Pair{{Offset: offset, Value: value}}}
}

// WriteError builds the outbound record for a failed write.
func WriteError(addr uint16, offset uint16) Record {
	return Record{Addr: addr, Pairs: []Pair{{Offset: WriteFail, Value: offset}}}
}
