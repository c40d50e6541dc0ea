// internal/mqtt/publisher.go

// Package mqtt mirrors outbound telemetry records to an MQTT broker as
// JSON, for dashboards and tooling that prefer a broker over the raw
// UDP feed. Publishing is fire-and-forget and never blocks the control
// loop.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/makemob/ukibridge/internal/wire"
)

// queueSize bounds records waiting on a slow broker; overflow is dropped.
const queueSize = 256

// Config selects the broker and topic layout.
type Config struct {
	BrokerURL string // e.g. tcp://localhost:1883
	ClientID  string
	RootTopic string // records publish on <RootTopic>/<address>
	Username  string
	Password  string
}

// RecordMessage is the JSON structure published per telemetry record.
type RecordMessage struct {
	Address   uint16            `json:"address"`
	Registers map[string]uint16 `json:"registers"`
	Timestamp string            `json:"timestamp"`
}

// Publisher implements the bridge telemetry sink over one broker.
type Publisher struct {
	cfg    Config
	client pahomqtt.Client

	queue chan wire.Record
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewPublisher prepares a publisher; Start connects it.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "ukibridge"
	}
	if cfg.RootTopic == "" {
		cfg.RootTopic = "ukibridge"
	}
	return &Publisher{
		cfg:   cfg,
		queue: make(chan wire.Record, queueSize),
		stop:  make(chan struct{}),
	}
}

// Start connects to the broker and begins draining the record queue.
func (p *Publisher) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: connect %s: %w", p.cfg.BrokerURL, token.Error())
	}

	p.wg.Add(1)
	go p.run()
	return nil
}

// Publish enqueues one record for the broker worker, dropping on a full
// queue so a stalled broker cannot back-pressure the bus loop.
func (p *Publisher) Publish(rec wire.Record) {
	select {
	case p.queue <- rec:
	default:
	}
}

// Stop flushes nothing and disconnects; queued records are discarded.
func (p *Publisher) Stop() {
	close(p.stop)
	p.wg.Wait()
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case rec := <-p.queue:
			p.publishRecord(rec)
		}
	}
}

func (p *Publisher) publishRecord(rec wire.Record) {
	msg := RecordMessage{
		Address:   rec.Addr,
		Registers: make(map[string]uint16, len(rec.Pairs)),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, pair := range rec.Pairs {
		msg.Registers[strconv.Itoa(int(pair.Offset))] = pair.Value
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("mqtt: marshal record: %v", err)
		return
	}

	topic := p.cfg.RootTopic + "/" + strconv.Itoa(int(rec.Addr))
	token := p.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		log.Printf("mqtt: publish %s: %v", topic, token.Error())
	}
}
