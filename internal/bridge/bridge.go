// internal/bridge/bridge.go

// Package bridge is the control loop joining the serial fieldbus fleet
// to the UDP command/telemetry channel. A single worker owns all mutable
// state and advances it one Tick at a time; collaborators talk to it
// only through the command queue, the telemetry sinks and the control
// surface methods.
package bridge

import (
	"log"
	"time"

	"github.com/makemob/ukibridge/internal/config"
	"github.com/makemob/ukibridge/internal/regmap"
	"github.com/makemob/ukibridge/internal/transport"
	"github.com/makemob/ukibridge/internal/wire"
)

const (
	// idleDelay paces the loop when there is no bus work to do.
	idleDelay = 100 * time.Millisecond

	// settleDelay gives a serial driver time to release the OS handle
	// before a transport is rebuilt on the same port.
	settleDelay = 500 * time.Millisecond

	maxFramesPerTick = 256
)

// Message is an in-process command triple, the co-located alternative
// to a UDP command frame. It passes through the same sanitizer.
type Message struct {
	Addr   uint16
	Offset uint16
	Value  uint16
}

// Input yields raw inbound command frames without blocking.
type Input interface {
	Drain(max int) [][]byte
}

// TelemetrySink receives every outbound telemetry/ack/error record.
// Publish must not block the control loop.
type TelemetrySink interface {
	Publish(rec wire.Record)
}

// Dialer opens the bus client for one port. The bridge treats a dial
// failure as a disabled bus, not a fatal error.
type Dialer func(bus transport.Bus, port string) (transport.Client, error)

// Options is the bridge runtime configuration.
type Options struct {
	ConfigPath string
	LeftPort   string // empty = bus disabled
	RightPort  string

	Retries          int           // bus attempts per operation
	FrameDelay       time.Duration // inter-frame delay, default 2ms
	HeartbeatTimeout time.Duration // default 5s
	SpeedLimit       int16         // symmetric setpoint envelope, default 60

	// SendEveryWrite disables shadow-cache write suppression (debug).
	SendEveryWrite bool
	Debug          bool
}

// Bridge owns the poll scheduler, write queue, heartbeat state and both
// transports. Not safe for concurrent use: one goroutine drives it.
type Bridge struct {
	opts Options
	dial Dialer

	tr    [2]*transport.Transport
	reg   *config.Registry
	queue *writeQueue

	// Two-level round robin. minor indexes the board polled this tick,
	// major the board receiving the full read this sweep.
	minor      int
	major      int
	minorStart time.Time
	majorStart time.Time

	hbArmed bool
	hbLast  time.Time

	udpEnabled   bool
	accelHonored bool
	clampWarned  bool

	input    Input
	commands <-chan Message
	sinks    []TelemetrySink
}

// New loads the configuration, opens the transports and returns a ready
// bridge. A missing or invalid configuration at startup is fatal; later
// reload failures only keep the previous registry.
func New(opts Options, dial Dialer) (*Bridge, error) {
	if opts.HeartbeatTimeout == 0 {
		opts.HeartbeatTimeout = 5 * time.Second
	}
	if opts.SpeedLimit == 0 {
		opts.SpeedLimit = 60
	}
	if opts.FrameDelay == 0 {
		opts.FrameDelay = 2 * time.Millisecond
	}

	f, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	config.Normalize(f)
	if err := config.Validate(f); err != nil {
		return nil, err
	}

	b := &Bridge{
		opts:         opts,
		dial:         dial,
		reg:          config.BuildRegistry(f),
		queue:        newWriteQueue(),
		udpEnabled:   true,
		accelHonored: true,
		minorStart:   time.Now(),
		majorStart:   time.Now(),
	}
	b.openTransports()
	return b, nil
}

// AttachInput binds the inbound command frame source.
func (b *Bridge) AttachInput(in Input) { b.input = in }

// AttachCommands binds the direct in-process command queue.
func (b *Bridge) AttachCommands(ch <-chan Message) { b.commands = ch }

// AttachSink adds one telemetry destination.
func (b *Bridge) AttachSink(s TelemetrySink) { b.sinks = append(b.sinks, s) }

// Boards exposes the current active set, for diagnostics.
func (b *Bridge) Boards() []config.Board { return b.reg.Boards }

// Tick runs one step of the poll scheduler. The caller invokes it in a
// loop, interleaving its own responsibilities between ticks; a tick
// always runs to completion once started.
func (b *Bridge) Tick() {
	if !b.tr[transport.Left].Enabled() && !b.tr[transport.Right].Enabled() {
		// Both buses down: inbound traffic still arms and refreshes the
		// heartbeat, and queued writes still drain (each degrading to an
		// error frame on the disabled transport), so upstream keeps an
		// honest view and nothing accumulates. Do not spin.
		b.pumpInbound()
		b.flushWrites()
		time.Sleep(idleDelay)
		return
	}

	boards := b.reg.Boards

	if len(boards) == 0 {
		// Nothing to poll; retry the configuration until boards appear.
		if b.drainInbound() {
			b.hbArmed = true
			b.hbLast = time.Now()
		}
		if time.Since(b.majorStart) >= time.Second {
			b.majorStart = time.Now()
			b.reloadConfig()
		}
		time.Sleep(idleDelay)
		return
	}

	// Cycle bookkeeping. A minor wrap advances the major cursor; a
	// major wrap reloads the configuration.
	if b.minor >= len(boards) {
		log.Printf("bridge: minor cycle completed in %v", time.Since(b.minorStart))
		b.minor = 0
		b.minorStart = time.Now()
		b.major++
		if b.major >= len(boards) {
			if b.opts.Debug {
				log.Printf("bridge: major cycle completed in %v", time.Since(b.majorStart))
			}
			b.major = 0
			b.majorStart = time.Now()
			b.reloadConfig()
			boards = b.reg.Boards
		}
	}

	// Inbound commands and the heartbeat failsafe.
	b.pumpInbound()

	if len(boards) == 0 {
		time.Sleep(idleDelay)
		return
	}

	board := boards[b.minor]

	// High-priority read: cheap and latency-sensitive, every board
	// every tick.
	b.readAndForward(board, regmap.HighPriority)

	// Full read: one board per minor sweep, then reconcile its
	// configured parameters.
	if b.minor == b.major {
		if b.opts.Debug {
			log.Printf("bridge: full read board %d", board.Addr)
		}
		for _, span := range regmap.FullRead {
			b.readAndForward(board, span)
		}
		b.reconcile(board)
	}

	b.flushWrites()

	b.minor++
}

// EstopAll queues an emergency-stop write for every active board.
func (b *Bridge) EstopAll() {
	log.Printf("bridge: sending e-stop to all boards")
	for _, board := range b.reg.Boards {
		b.queue.Add(board.Addr, regmap.Estop, regmap.EstopEngage)
	}
}

// ResetAll queues an estop reset for every active board and disarms the
// heartbeat; the next valid inbound command re-arms it.
func (b *Bridge) ResetAll() {
	log.Printf("bridge: resetting e-stop on all boards")
	for _, board := range b.reg.Boards {
		b.queue.Add(board.Addr, regmap.ResetEstop, regmap.ResetMagic)
	}
	b.hbArmed = false
}

// SetUDPInput enables or disables processing of inbound UDP frames.
// While disabled the socket is still drained so stale datagrams cannot
// burst in when it is re-enabled.
func (b *Bridge) SetUDPInput(enabled bool) { b.udpEnabled = enabled }

// SetAccelConfigHonored controls whether the acceleration parameter is
// reconciled from configuration. The sequencer collaborator turns this
// off while it drives acceleration itself.
func (b *Bridge) SetAccelConfigHonored(honored bool) { b.accelHonored = honored }

// Reconfigure tears down and rebuilds both transports on new ports and
// reloads the board registry. An empty configPath keeps the current file.
func (b *Bridge) Reconfigure(leftPort, rightPort, configPath string) {
	log.Printf("bridge: reconfigure left=%q right=%q config=%q", leftPort, rightPort, configPath)
	b.closeTransports()
	time.Sleep(settleDelay)
	b.opts.LeftPort = leftPort
	b.opts.RightPort = rightPort
	if configPath != "" {
		b.opts.ConfigPath = configPath
	}
	b.openTransports()
	b.reloadConfig()
	b.minor, b.major = 0, 0
	b.minorStart = time.Now()
	b.majorStart = time.Now()
}

// Shutdown stops the fleet and releases the transports. The caller must
// not Tick afterwards.
func (b *Bridge) Shutdown() {
	b.EstopAll()
	b.flushWrites()
	b.closeTransports()
}

// ---- inbound path ----

// pumpInbound drains inbound commands, arming or refreshing the
// heartbeat on valid traffic, then applies the failsafe. The armed flag
// survives a trip, so repeated timeouts keep re-triggering the stop
// until an explicit reset.
func (b *Bridge) pumpInbound() {
	if b.drainInbound() {
		b.hbArmed = true
		b.hbLast = time.Now()
	}
	if b.hbArmed && time.Since(b.hbLast) > b.opts.HeartbeatTimeout {
		log.Printf("bridge: no upstream command for %v, heartbeat expired", b.opts.HeartbeatTimeout)
		b.EstopAll()
	}
}

// drainInbound consumes every pending UDP frame and direct command.
// It reports whether at least one valid message was accepted.
func (b *Bridge) drainInbound() bool {
	valid := false

	if b.input != nil {
		frames := b.input.Drain(maxFramesPerTick)
		if b.udpEnabled {
			for _, frame := range frames {
				rec, err := wire.Decode(frame)
				if err != nil {
					// Malformed frames get no reply.
					if b.opts.Debug {
						log.Printf("bridge: dropped malformed frame (%d bytes)", len(frame))
					}
					continue
				}
				if b.ingest(rec.Addr, rec.Pairs) {
					valid = true
				}
			}
		}
	}

	for b.commands != nil {
		select {
		case m := <-b.commands:
			if b.ingest(m.Addr, []wire.Pair{{Offset: m.Offset, Value: m.Value}}) {
				valid = true
			}
			continue
		default:
		}
		break
	}

	return valid
}

// ingest routes one decoded command to the write queue.
func (b *Bridge) ingest(addr uint16, pairs []wire.Pair) bool {
	switch {
	case addr == wire.Broadcast:
		valid := false
		for _, p := range pairs {
			switch {
			case p.Offset == regmap.Estop:
				b.EstopAll()
				valid = true
			case p.Offset == regmap.ResetEstop && p.Value == regmap.ResetMagic:
				b.ResetAll()
				valid = true
			default:
				log.Printf("bridge: invalid broadcast command offset=%d value=%d", p.Offset, p.Value)
			}
		}
		return valid

	case addr == wire.HeartbeatAddress:
		// Pure heartbeat sink: accepted, no board writes.
		return true

	default:
		if addr > 255 {
			log.Printf("bridge: command for unknown address %d dropped", addr)
			return false
		}
		board, ok := b.reg.Lookup(uint8(addr))
		if !ok {
			log.Printf("bridge: command for board %d, which is not enabled", addr)
			return false
		}
		for _, p := range pairs {
			b.enqueue(board.Addr, p.Offset, p.Value)
		}
		return len(pairs) > 0
	}
}

// enqueue sanitizes one outbound write and appends it to the board's
// pending list.
func (b *Bridge) enqueue(addr uint8, offset, value uint16) {
	if offset == regmap.MotorSetpoint {
		value = b.clampSetpoint(value)
	}
	b.queue.Add(addr, offset, value)
}

// clampSetpoint bounds a motor setpoint to the configured symmetric
// speed envelope. Setpoints are signed on the wire.
func (b *Bridge) clampSetpoint(value uint16) uint16 {
	v := int16(value)
	clamped := v
	if v > b.opts.SpeedLimit {
		clamped = b.opts.SpeedLimit
	} else if v < -b.opts.SpeedLimit {
		clamped = -b.opts.SpeedLimit
	}
	if clamped != v && !b.clampWarned {
		log.Printf("bridge: motor setpoint %d clamped to %d (reported once)", v, clamped)
		b.clampWarned = true
	}
	return uint16(clamped)
}

// ---- outbound path ----

// readAndForward reads one register span and mirrors the result to every
// telemetry sink; a failed read yields an error record instead.
func (b *Bridge) readAndForward(board config.Board, span regmap.Span) {
	values, err := b.transportFor(board.Bus).ReadRange(board.Addr, span.Start, span.End)
	if err != nil {
		b.publish(wire.ReadError(uint16(board.Addr), span.Start, span.End))
		return
	}
	b.publish(wire.Telemetry(uint16(board.Addr), span.Start, values))
}

// reconcile queues a write for every configured parameter whose shadow
// value differs from the target. With an unchanged configuration this
// settles to zero writes once the cache matches.
func (b *Bridge) reconcile(board config.Board) {
	tr := b.transportFor(board.Bus)
	for _, tgt := range board.Targets {
		if tgt.AccelGated && !b.accelHonored {
			continue
		}
		if cur, ok := tr.Shadow(board.Addr, tgt.Offset); ok && cur == tgt.Value {
			continue
		}
		b.queue.Add(board.Addr, tgt.Offset, tgt.Value)
	}
}

// flushWrites drains every board's pending list, most recent first.
// The first entry seen for an offset wins; older superseded entries are
// skipped. Each surviving write produces an ack or error record, even
// when the bus write itself is suppressed by a shadow-cache match.
func (b *Bridge) flushWrites() {
	for _, board := range b.reg.Boards {
		entries := b.queue.Take(board.Addr)
		if len(entries) == 0 {
			continue
		}
		log.Printf("bridge: writing %d registers to board %d", len(entries), board.Addr)

		tr := b.transportFor(board.Bus)
		seen := make(map[uint16]bool)
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if seen[e.Offset] {
				continue
			}
			seen[e.Offset] = true

			if !b.opts.SendEveryWrite {
				if cur, ok := tr.Shadow(board.Addr, e.Offset); ok && cur == e.Value {
					// Known staleness risk: the cache may disagree with
					// a board reset behind our back. Still reflect the
					// queued, now-confirmed value upstream.
					b.publish(wire.WriteAck(uint16(board.Addr), e.Offset, e.Value))
					continue
				}
			}

			ackOff, ackVal, err := tr.WriteSingle(board.Addr, e.Offset, e.Value)
			if err != nil {
				b.publish(wire.WriteError(uint16(board.Addr), e.Offset))
				continue
			}
			b.publish(wire.WriteAck(uint16(board.Addr), ackOff, ackVal))
		}
	}
}

func (b *Bridge) publish(rec wire.Record) {
	for _, s := range b.sinks {
		s.Publish(rec)
	}
}

// ---- configuration / transports ----

// reloadConfig rebuilds the registry from the configuration file.
// Any failure keeps the previous registry and safety parameters.
func (b *Bridge) reloadConfig() {
	f, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		log.Printf("bridge: config reload failed, keeping previous registry: %v", err)
		return
	}
	config.Normalize(f)
	if err := config.Validate(f); err != nil {
		log.Printf("bridge: config invalid, keeping previous registry: %v", err)
		return
	}
	next := config.BuildRegistry(f)

	// Discard queue and shadow state for boards that left the active
	// set or moved to the other bus.
	for _, old := range b.reg.Boards {
		cur, ok := next.Lookup(old.Addr)
		if ok && cur.Bus == old.Bus {
			continue
		}
		b.queue.Drop(old.Addr)
		b.transportFor(old.Bus).Forget(old.Addr)
	}

	if len(next.Boards) != len(b.reg.Boards) {
		b.minor, b.major = 0, 0
	}
	b.reg = next
}

func (b *Bridge) transportFor(bus transport.Bus) *transport.Transport {
	return b.tr[bus]
}

func (b *Bridge) openTransports() {
	b.tr[transport.Left] = b.openTransport(transport.Left, b.opts.LeftPort)
	b.tr[transport.Right] = b.openTransport(transport.Right, b.opts.RightPort)
}

func (b *Bridge) openTransport(bus transport.Bus, port string) *transport.Transport {
	cfg := transport.Config{Bus: bus, Retries: b.opts.Retries, FrameDelay: b.opts.FrameDelay}
	if port == "" {
		return transport.New(cfg, nil)
	}
	client, err := b.dial(bus, port)
	if err != nil {
		log.Printf("bridge: %s port %q unavailable, bus disabled: %v", bus, port, err)
		return transport.New(cfg, nil)
	}
	log.Printf("bridge: %s bus on %s", bus, port)
	return transport.New(cfg, client)
}

func (b *Bridge) closeTransports() {
	for _, tr := range b.tr {
		if tr == nil {
			continue
		}
		if err := tr.Close(); err != nil {
			log.Printf("bridge: closing %s bus: %v", tr.Bus(), err)
		}
	}
}
