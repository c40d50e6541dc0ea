// internal/transport/modbus/client.go

// Package modbus adapts a goburrow RTU master to the transport.Client
// interface. The adapter is geometry-only: framing, CRC and exception
// decoding live in the library.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Config is minimal serial transport config.
type Config struct {
	Port     string
	BaudRate int           // default 19200
	Timeout  time.Duration // per-request response timeout
}

// Client implements transport.Client over Modbus RTU.
//
// The bus is shared: the slave id is set per request, so a single serial
// handle serves every board on the channel. Calls must not overlap; the
// bridge control loop is the only caller.
type Client struct {
	handler *modbus.RTUClientHandler
	conn    modbus.Client
}

// New opens the serial port and returns a connected client.
func New(cfg Config) (*Client, error) {
	if cfg.Port == "" {
		return nil, errors.New("modbus client: port required")
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	if h.BaudRate == 0 {
		h.BaudRate = 19200
	}
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{handler: h, conn: modbus.NewClient(h)}, nil
}

// ReadHoldingRegisters reads qty registers from one board (FC 3).
func (c *Client) ReadHoldingRegisters(slave byte, start, qty uint16) ([]uint16, error) {
	c.handler.SlaveId = slave
	raw, err := c.conn.ReadHoldingRegisters(start, qty)
	if err != nil {
		return nil, err
	}
	if len(raw) != int(qty)*2 {
		return nil, fmt.Errorf("modbus: read payload %d bytes, want %d", len(raw), int(qty)*2)
	}
	values := make([]uint16, qty)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return values, nil
}

// WriteSingleRegister writes one register (FC 6) and returns the value
// echoed by the board. The library verifies the echoed offset.
func (c *Client) WriteSingleRegister(slave byte, offset, value uint16) (uint16, error) {
	c.handler.SlaveId = slave
	raw, err := c.conn.WriteSingleRegister(offset, value)
	if err != nil {
		return 0, err
	}
	if len(raw) < 2 {
		return 0, errors.New("modbus: short write echo")
	}
	return binary.BigEndian.Uint16(raw), nil
}

// Close releases the serial handle.
func (c *Client) Close() error {
	return c.handler.Close()
}
