// internal/wire/wire_test.go
package wire

import (
	"bytes"
	"testing"
)

func TestTelemetryRoundTrip(t *testing.T) {
	rec := Telemetry(5, 100, []uint16{10, 20, 30})

	got, err := Decode(Encode(rec))
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if got.Addr != 5 {
		t.Fatalf("addr=%d, want 5", got.Addr)
	}
	want := []Pair{{100, 10}, {101, 20}, {102, 30}}
	if len(got.Pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(got.Pairs), len(want))
	}
	for i, p := range want {
		if got.Pairs[i] != p {
			t.Fatalf("pair %d = %+v, want %+v", i, got.Pairs[i], p)
		}
	}
}

func TestReadErrorFrame(t *testing.T) {
	got, err := Decode(Encode(ReadError(5, 100, 102)))
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if got.Addr != 5 {
		t.Fatalf("addr=%d, want 5", got.Addr)
	}
	if len(got.Pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(got.Pairs))
	}
	if got.Pairs[0] != (Pair{ReadFailStart, 100}) {
		t.Fatalf("failure start pair = %+v", got.Pairs[0])
	}
	if got.Pairs[1] != (Pair{ReadFailEnd, 102}) {
		t.Fatalf("failure end pair = %+v", got.Pairs[1])
	}
}

func TestWriteResultFrames(t *testing.T) {
	ack := Encode(WriteAck(7, 200, 30))
	if !bytes.Equal(ack, []byte{7, 0, 200, 0, 30, 0}) {
		t.Fatalf("ack bytes = %v", ack)
	}

	fail := Encode(WriteError(7, 200))
	// 10002 = 0x2712 little-endian
	if !bytes.Equal(fail, []byte{7, 0, 0x12, 0x27, 200, 0}) {
		t.Fatalf("error bytes = %v", fail)
	}
}

func TestSignedSetpointValue(t *testing.T) {
	// -30 as two's complement survives the unsigned wire encoding.
	neg := int16(-30)
	rec := Record{Addr: 4, Pairs: []Pair{{200, uint16(neg)}}}

	got, err := Decode(Encode(rec))
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if int16(got.Pairs[0].Value) != -30 {
		t.Fatalf("value = %d, want -30", int16(got.Pairs[0].Value))
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		{1},
		{1, 2, 3},          // odd length
		{1, 0, 200, 0},     // half a pair
		{1, 0, 200, 0, 30}, // pair cut short
	}
	for _, c := range cases {
		if _, err := Decode(c); err != ErrMalformed {
			t.Fatalf("Decode(%v) err=%v, want ErrMalformed", c, err)
		}
	}
}

func TestDecodeAddressOnly(t *testing.T) {
	got, err := Decode([]byte{240, 0})
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if got.Addr != 240 || len(got.Pairs) != 0 {
		t.Fatalf("got addr=%d pairs=%d", got.Addr, len(got.Pairs))
	}
}
