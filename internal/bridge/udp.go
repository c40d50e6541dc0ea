// internal/bridge/udp.go
package bridge

import (
	"log"
	"net"
	"time"

	"github.com/makemob/ukibridge/internal/wire"
)

// UDPInput is the bound command socket. The control loop drains it
// without blocking once per tick.
type UDPInput struct {
	conn *net.UDPConn
}

// ListenInput binds the UDP command socket.
func ListenInput(addr string) (*UDPInput, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &UDPInput{conn: conn}, nil
}

// Drain reads every datagram already queued on the socket, up to max,
// and returns their payloads. It never waits for a packet to arrive.
func (u *UDPInput) Drain(max int) [][]byte {
	var frames [][]byte
	buf := make([]byte, 65535)
	for len(frames) < max {
		// A deadline in the past turns the read into a pure poll.
		if err := u.conn.SetReadDeadline(time.Now()); err != nil {
			log.Printf("bridge: udp set deadline: %v", err)
			break
		}
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			log.Printf("bridge: udp receive: %v", err)
			break
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		frames = append(frames, frame)
	}
	return frames
}

// Close releases the socket.
func (u *UDPInput) Close() error { return u.conn.Close() }

// UDPOutput sends telemetry/ack/error records to a fixed peer,
// one frame per transmission, fire-and-forget.
type UDPOutput struct {
	conn *net.UDPConn
}

// DialOutput connects the telemetry socket to its peer.
func DialOutput(addr string) (*UDPOutput, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPOutput{conn: conn}, nil
}

// Publish encodes and sends one record. Delivery is not guaranteed and
// send errors are logged, never surfaced to the control loop.
func (u *UDPOutput) Publish(rec wire.Record) {
	if _, err := u.conn.Write(wire.Encode(rec)); err != nil {
		log.Printf("bridge: udp send: %v", err)
	}
}

// Close releases the socket.
func (u *UDPOutput) Close() error { return u.conn.Close() }

// DirectSink is the in-process alternative to the telemetry socket:
// a collaborator drains structured records on its own schedule.
// Publish never blocks; records are dropped when the collaborator
// falls behind.
type DirectSink struct {
	C chan wire.Record
}

// NewDirectSink creates a sink buffering up to size records.
func NewDirectSink(size int) *DirectSink {
	return &DirectSink{C: make(chan wire.Record, size)}
}

// Publish delivers one record by value, dropping on a full buffer.
func (s *DirectSink) Publish(rec wire.Record) {
	select {
	case s.C <- rec:
	default:
	}
}
