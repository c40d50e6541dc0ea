// cmd/ukibridge/main.go
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makemob/ukibridge/internal/bridge"
	"github.com/makemob/ukibridge/internal/mqtt"
	"github.com/makemob/ukibridge/internal/transport"
	busmodbus "github.com/makemob/ukibridge/internal/transport/modbus"
)

func main() {
	var (
		configPath = flag.String("config", "UkiConfig.yaml", "actuator configuration file")
		leftPort   = flag.String("left", "", "left bus serial port (empty = bus disabled)")
		rightPort  = flag.String("right", "", "right bus serial port (empty = bus disabled)")
		listenAddr = flag.String("listen", "127.0.0.1:9000", "UDP command listen address")
		peerAddr   = flag.String("peer", "127.0.0.1:9001", "UDP telemetry peer address")
		baudRate   = flag.Int("baud", 19200, "serial baud rate")
		timeout    = flag.Duration("timeout", 100*time.Millisecond, "bus response timeout")
		mqttBroker = flag.String("mqtt", "", "MQTT broker URL for the telemetry mirror (empty = off)")
		mqttTopic  = flag.String("mqtt-topic", "ukibridge", "MQTT root topic")
		sendEvery  = flag.Bool("send-every-write", false, "bypass shadow-cache write suppression")
		debug      = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	// --------------------
	// Build the bridge
	// --------------------

	dial := func(bus transport.Bus, port string) (transport.Client, error) {
		return busmodbus.New(busmodbus.Config{
			Port:     port,
			BaudRate: *baudRate,
			Timeout:  *timeout,
		})
	}

	b, err := bridge.New(bridge.Options{
		ConfigPath:     *configPath,
		LeftPort:       *leftPort,
		RightPort:      *rightPort,
		SendEveryWrite: *sendEvery,
		Debug:          *debug,
	}, dial)
	if err != nil {
		log.Fatalf("bridge build failed: %v", err)
	}

	// --------------------
	// Wire the UDP channel
	// --------------------

	in, err := bridge.ListenInput(*listenAddr)
	if err != nil {
		log.Fatalf("udp listen failed (%s): %v", *listenAddr, err)
	}
	defer in.Close()
	b.AttachInput(in)

	out, err := bridge.DialOutput(*peerAddr)
	if err != nil {
		log.Fatalf("udp dial failed (%s): %v", *peerAddr, err)
	}
	defer out.Close()
	b.AttachSink(out)

	// Optional MQTT telemetry mirror.
	if *mqttBroker != "" {
		pub := mqtt.NewPublisher(mqtt.Config{
			BrokerURL: *mqttBroker,
			RootTopic: *mqttTopic,
		})
		if err := pub.Start(); err != nil {
			log.Printf("mqtt mirror disabled: %v", err)
		} else {
			defer pub.Stop()
			b.AttachSink(pub)
		}
	}

	// --------------------
	// Control loop
	// --------------------

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	log.Printf("ukibridge: monitoring %d boards", len(b.Boards()))

	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				log.Print("ukibridge: caught SIGHUP, reopening ports and reloading config")
				b.Reconfigure(*leftPort, *rightPort, *configPath)
				continue
			}
			log.Printf("ukibridge: caught %v, stopping fleet", sig)
			b.Shutdown()
			return
		default:
		}
		b.Tick()
	}
}
