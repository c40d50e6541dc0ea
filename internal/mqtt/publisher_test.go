// internal/mqtt/publisher_test.go
package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/makemob/ukibridge/internal/wire"
)

func TestPublishNeverBlocks(t *testing.T) {
	p := NewPublisher(Config{BrokerURL: "tcp://localhost:1883"})

	// Not started, nothing drains the queue: overflow must drop, not block.
	rec := wire.Record{Addr: 4, Pairs: []wire.Pair{{Offset: 201, Value: 5}}}
	for i := 0; i < queueSize+10; i++ {
		p.Publish(rec)
	}
}

func TestRecordMessageShape(t *testing.T) {
	rec := wire.Record{Addr: 5, Pairs: []wire.Pair{{Offset: 100, Value: 10}, {Offset: 101, Value: 20}}}

	msg := RecordMessage{
		Address:   rec.Addr,
		Registers: map[string]uint16{"100": 10, "101": 20},
		Timestamp: "2017-01-01T00:00:00Z",
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal err=%v", err)
	}

	var back RecordMessage
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal err=%v", err)
	}
	if back.Address != 5 || back.Registers["100"] != 10 || back.Registers["101"] != 20 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestDefaults(t *testing.T) {
	p := NewPublisher(Config{BrokerURL: "tcp://localhost:1883"})
	if p.cfg.ClientID == "" || p.cfg.RootTopic == "" {
		t.Fatal("client id and root topic must default")
	}
}
