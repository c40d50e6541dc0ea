// internal/transport/transport_test.go
package transport

import (
	"errors"
	"testing"
)

// fakeClient fails the first failN calls, then succeeds.
type fakeClient struct {
	failN  int
	reads  int
	writes int
}

func (f *fakeClient) ReadHoldingRegisters(slave byte, start, qty uint16) ([]uint16, error) {
	f.reads++
	if f.reads <= f.failN {
		return nil, errors.New("no response")
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = start + uint16(i)
	}
	return out, nil
}

func (f *fakeClient) WriteSingleRegister(slave byte, offset, value uint16) (uint16, error) {
	f.writes++
	if f.writes <= f.failN {
		return 0, errors.New("no response")
	}
	return value, nil
}

func (f *fakeClient) Close() error { return nil }

func newTestTransport(client Client) *Transport {
	return New(Config{Bus: Left, Retries: 3, FrameDelay: 1}, client)
}

func TestReadRangeUpdatesShadow(t *testing.T) {
	tr := newTestTransport(&fakeClient{})

	values, err := tr.ReadRange(4, 300, 304)
	if err != nil {
		t.Fatalf("ReadRange err=%v", err)
	}
	if len(values) != 5 {
		t.Fatalf("got %d values, want 5", len(values))
	}
	for off := uint16(300); off <= 304; off++ {
		v, ok := tr.Shadow(4, off)
		if !ok || v != off {
			t.Fatalf("shadow(4,%d) = %d,%v", off, v, ok)
		}
	}
}

func TestReadRangeRetriesThenSucceeds(t *testing.T) {
	fake := &fakeClient{failN: 2}
	tr := newTestTransport(fake)

	if _, err := tr.ReadRange(4, 100, 104); err != nil {
		t.Fatalf("ReadRange err=%v", err)
	}
	if fake.reads != 3 {
		t.Fatalf("reads=%d, want 3", fake.reads)
	}
}

func TestReadRangeExhaustedInvalidatesShadow(t *testing.T) {
	fake := &fakeClient{}
	tr := newTestTransport(fake)

	// Seed the shadow, then make every further read fail.
	if _, err := tr.ReadRange(4, 100, 104); err != nil {
		t.Fatalf("seed read err=%v", err)
	}
	fake.failN = 100

	_, err := tr.ReadRange(4, 100, 104)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var be *BusError
	if !errors.As(err, &be) {
		t.Fatalf("error type %T, want *BusError", err)
	}
	if be.Attempts != 3 {
		t.Fatalf("attempts=%d, want 3", be.Attempts)
	}
	if _, ok := tr.Shadow(4, 102); ok {
		t.Fatal("shadow should be unknown after a failed read")
	}
}

func TestDisabledTransport(t *testing.T) {
	tr := newTestTransport(nil)

	if tr.Enabled() {
		t.Fatal("transport with no client should be disabled")
	}

	_, err := tr.ReadRange(4, 100, 104)
	if !errors.Is(err, ErrNoPort) {
		t.Fatalf("read err=%v, want ErrNoPort", err)
	}
	_, _, err = tr.WriteSingle(4, 200, 1)
	if !errors.Is(err, ErrNoPort) {
		t.Fatalf("write err=%v, want ErrNoPort", err)
	}
}

func TestWriteSingleUpdatesShadow(t *testing.T) {
	tr := newTestTransport(&fakeClient{})

	off, ack, err := tr.WriteSingle(4, 200, 30)
	if err != nil {
		t.Fatalf("WriteSingle err=%v", err)
	}
	if off != 200 || ack != 30 {
		t.Fatalf("ack = (%d,%d), want (200,30)", off, ack)
	}
	if v, ok := tr.Shadow(4, 200); !ok || v != 30 {
		t.Fatalf("shadow(4,200) = %d,%v", v, ok)
	}
}

func TestWriteSingleFailureInvalidatesShadow(t *testing.T) {
	fake := &fakeClient{}
	tr := newTestTransport(fake)

	if _, _, err := tr.WriteSingle(4, 200, 30); err != nil {
		t.Fatalf("seed write err=%v", err)
	}
	fake.failN = 100

	if _, _, err := tr.WriteSingle(4, 200, 31); err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := tr.Shadow(4, 200); ok {
		t.Fatal("shadow should be unknown after a failed write")
	}
}

func TestForget(t *testing.T) {
	tr := newTestTransport(&fakeClient{})

	if _, err := tr.ReadRange(4, 100, 101); err != nil {
		t.Fatalf("ReadRange err=%v", err)
	}
	tr.Forget(4)
	if _, ok := tr.Shadow(4, 100); ok {
		t.Fatal("shadow should be empty after Forget")
	}
}
