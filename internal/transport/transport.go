// internal/transport/transport.go

// Package transport owns access to one physical serial bus shared by up
// to ~20 actuator boards. It layers bounded retries, the mandatory
// inter-frame delay and a shadow register cache over a raw bus client.
package transport

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Bus identifies one of the two physical serial channels.
type Bus int

const (
	Left Bus = iota
	Right
)

func (b Bus) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("bus(%d)", int(b))
}

// Client abstracts the bus operations the transport needs.
// Only two function codes are used: read holding registers and
// write single register.
type Client interface {
	ReadHoldingRegisters(slave byte, start, qty uint16) ([]uint16, error)
	WriteSingleRegister(slave byte, offset, value uint16) (uint16, error)
	Close() error
}

// ErrNoPort reports an operation on a transport that was constructed
// without a physical port bound.
var ErrNoPort = errors.New("transport: no port bound")

// BusError wraps a read or write that exhausted its retry budget.
type BusError struct {
	Bus      Bus
	Addr     uint8
	Start    uint16
	End      uint16
	Attempts int
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("transport: %s bus addr=%d offsets=%d-%d failed after %d attempts: %v",
		e.Bus, e.Addr, e.Start, e.End, e.Attempts, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Config is the per-bus runtime configuration.
type Config struct {
	Bus        Bus
	Retries    int           // attempts per operation, default 3
	FrameDelay time.Duration // slept after every attempt, success or failure
}

// Transport drives one bus. A nil client leaves the transport permanently
// disabled: every operation reports no response without consuming a retry
// budget, but still incurs the inter-frame delay so a disabled-bus board
// list cannot spin the scheduler hot.
type Transport struct {
	bus        Bus
	client     Client
	retries    int
	frameDelay time.Duration

	// shadow holds the last known value per (board, offset).
	// Absence means never read, or invalidated by a failure.
	shadow map[uint8]map[uint16]uint16
}

// New creates a transport over client. client may be nil (disabled bus).
func New(cfg Config, client Client) *Transport {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	return &Transport{
		bus:        cfg.Bus,
		client:     client,
		retries:    retries,
		frameDelay: cfg.FrameDelay,
		shadow:     make(map[uint8]map[uint16]uint16),
	}
}

// Bus returns the channel this transport drives.
func (t *Transport) Bus() Bus { return t.bus }

// Enabled reports whether a physical port is bound.
func (t *Transport) Enabled() bool { return t.client != nil }

// ReadRange reads the inclusive offset range [start, end] from one board.
// On success the shadow cache is updated for every offset read; on
// exhausted retries the range is invalidated to unknown.
func (t *Transport) ReadRange(addr uint8, start, end uint16) ([]uint16, error) {
	if t.client == nil {
		time.Sleep(t.frameDelay)
		return nil, &BusError{Bus: t.bus, Addr: addr, Start: start, End: end, Err: ErrNoPort}
	}

	qty := end - start + 1
	var values []uint16
	var err error
	attempts := 0
	for attempts < t.retries {
		values, err = t.client.ReadHoldingRegisters(addr, start, qty)
		attempts++
		time.Sleep(t.frameDelay)
		if err == nil {
			break
		}
		log.Printf("transport: %s bus read addr=%d offsets=%d-%d attempt=%d: %v",
			t.bus, addr, start, end, attempts, err)
	}
	if err != nil {
		t.invalidate(addr, start, end)
		return nil, &BusError{Bus: t.bus, Addr: addr, Start: start, End: end, Attempts: attempts, Err: err}
	}

	regs := t.boardShadow(addr)
	for i, v := range values {
		regs[start+uint16(i)] = v
	}
	return values, nil
}

// WriteSingle writes one register and returns the acknowledged
// (offset, value) echoed by the board.
func (t *Transport) WriteSingle(addr uint8, offset, value uint16) (uint16, uint16, error) {
	if t.client == nil {
		time.Sleep(t.frameDelay)
		return 0, 0, &BusError{Bus: t.bus, Addr: addr, Start: offset, End: offset, Err: ErrNoPort}
	}

	var ack uint16
	var err error
	attempts := 0
	for attempts < t.retries {
		ack, err = t.client.WriteSingleRegister(addr, offset, value)
		attempts++
		time.Sleep(t.frameDelay)
		if err == nil {
			break
		}
		log.Printf("transport: %s bus write addr=%d offset=%d attempt=%d: %v",
			t.bus, addr, offset, attempts, err)
	}
	if err != nil {
		t.invalidate(addr, offset, offset)
		return 0, 0, &BusError{Bus: t.bus, Addr: addr, Start: offset, End: offset, Attempts: attempts, Err: err}
	}

	t.boardShadow(addr)[offset] = ack
	return offset, ack, nil
}

// Shadow returns the last known value for (addr, offset).
// ok is false when the register has never been read or was invalidated.
func (t *Transport) Shadow(addr uint8, offset uint16) (uint16, bool) {
	regs, ok := t.shadow[addr]
	if !ok {
		return 0, false
	}
	v, ok := regs[offset]
	return v, ok
}

// Forget drops all shadow state for a board removed from the active set.
func (t *Transport) Forget(addr uint8) {
	delete(t.shadow, addr)
}

// Close releases the underlying port. The transport is disabled afterwards.
func (t *Transport) Close() error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Transport) boardShadow(addr uint8) map[uint16]uint16 {
	regs, ok := t.shadow[addr]
	if !ok {
		regs = make(map[uint16]uint16)
		t.shadow[addr] = regs
	}
	return regs
}

func (t *Transport) invalidate(addr uint8, start, end uint16) {
	regs, ok := t.shadow[addr]
	if !ok {
		return
	}
	for off := start; off <= end; off++ {
		delete(regs, off)
	}
}
