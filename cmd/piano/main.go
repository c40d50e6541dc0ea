// cmd/piano/main.go

// Command piano plays a CSV motion script against the bridge's UDP
// command socket. Columns are named <Actuator>_Speed or <Actuator>_Accel;
// each frame every known actuator receives its current speed and accel
// setpoints, blank cells holding the previous value.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/makemob/ukibridge/internal/config"
	"github.com/makemob/ukibridge/internal/regmap"
	"github.com/makemob/ukibridge/internal/wire"
)

const interPacketDelay = 10 * time.Millisecond

type player struct {
	conn  *net.UDPConn
	addrs map[string]uint8 // actuator name -> board address

	speed map[string]int16
	accel map[string]uint16
}

func main() {
	var (
		configPath  = flag.String("config", "UkiConfig.yaml", "actuator configuration file")
		loops       = flag.Int("loops", 1, "number of times to play the script")
		framePeriod = flag.Duration("frame", 500*time.Millisecond, "frame duration")
		target      = flag.String("target", "127.0.0.1:9000", "bridge UDP command address")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: piano [flags] <script.csv>")
	}
	scriptPath := flag.Arg(0)

	f, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	config.Normalize(f)
	if err := config.Validate(f); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	raddr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("bad target address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("udp dial failed: %v", err)
	}
	defer conn.Close()

	p := &player{
		conn:  conn,
		addrs: make(map[string]uint8),
		speed: make(map[string]int16),
		accel: make(map[string]uint16),
	}
	for _, a := range f.Actuators {
		p.addrs[a.Name] = a.Address
		p.speed[a.Name] = 0
		p.accel[a.Name] = 100
	}
	log.Printf("piano: %d actuators, script %s, %d loop(s), frame %v",
		len(p.addrs), scriptPath, *loops, *framePeriod)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	interrupted := false
play:
	for loop := 0; loop < *loops; loop++ {
		log.Printf("piano: starting loop %d of %d", loop+1, *loops)
		if err := p.playScript(scriptPath, *framePeriod, sigs); err != nil {
			if err == errInterrupted {
				interrupted = true
				break play
			}
			log.Fatalf("piano: %v", err)
		}
	}

	if interrupted {
		log.Print("piano: interrupted, sending stop commands")
	} else {
		log.Print("piano: script complete, sending stop commands")
	}

	// Spam the stop a few times in case of dropped packets.
	for i := 0; i < 5; i++ {
		for name := range p.addrs {
			p.sendSetpoint(p.addrs[name], 0, 100)
		}
		time.Sleep(*framePeriod)
	}
}

var errInterrupted = fmt.Errorf("interrupted")

func (p *player) playScript(path string, framePeriod time.Duration, sigs <-chan os.Signal) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading script header: %w", err)
	}

	// Column layout: <Actuator>_Speed / <Actuator>_Accel.
	names := make([]string, len(header))
	kinds := make([]string, len(header))
	for i, cell := range header {
		parts := strings.SplitN(strings.TrimSpace(cell), "_", 2)
		if len(parts) != 2 {
			return fmt.Errorf("column %q: heading must look like Name_Speed or Name_Accel", cell)
		}
		names[i], kinds[i] = parts[0], parts[1]
	}

	log.Print("piano: resetting e-stop on all boards")
	for _, addr := range p.addrs {
		p.send(uint16(addr), regmap.ResetEstop, regmap.ResetMagic)
	}

	frame := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame+1, err)
		}
		frame++

		for i, cell := range row {
			if i >= len(header) || cell == "" {
				continue
			}
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return fmt.Errorf("frame %d column %q: %w", frame, header[i], err)
			}
			switch kinds[i] {
			case "Speed":
				p.speed[names[i]] = int16(v)
			case "Accel":
				p.accel[names[i]] = uint16(v)
			default:
				log.Printf("piano: column %q is neither _Speed nor _Accel, ignored", header[i])
			}
		}

		// Every board gets its current setpoints every frame.
		for name, addr := range p.addrs {
			p.sendSetpoint(addr, p.speed[name], p.accel[name])
		}

		select {
		case <-sigs:
			return errInterrupted
		case <-time.After(framePeriod):
		}
	}
}

func (p *player) sendSetpoint(addr uint8, speed int16, accel uint16) {
	p.send(uint16(addr), regmap.MotorSetpoint, uint16(speed))
	p.send(uint16(addr), regmap.MotorAccel, accel)
}

func (p *player) send(addr uint16, offset, value uint16) {
	rec := wire.Record{Addr: addr, Pairs: []wire.Pair{{Offset: offset, Value: value}}}
	if _, err := p.conn.Write(wire.Encode(rec)); err != nil {
		log.Printf("piano: udp send: %v", err)
	}
	time.Sleep(interPacketDelay)
}
