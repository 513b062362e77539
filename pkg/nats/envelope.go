package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"narrative-engine-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "NARRATIVE_EVENTS"
	SubjectPrefix = "narrative"
)

// Subject maps an event type to its subject, e.g. narrative.TURN_COMPLETED
func Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// envelope is the wire form of an event; the type travels in the subject
type envelope struct {
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func encode(event events.Event) ([]byte, error) {
	occurred := event.Timestamp()
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return json.Marshal(envelope{OccurredAt: occurred, Data: event.Payload()})
}

func decode(subject string, raw []byte) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return events.BaseEvent{}, fmt.Errorf("decode event on %s: %w", subject, err)
	}
	if env.Data == nil {
		env.Data = make(map[string]interface{})
	}
	return events.BaseEvent{
		Type:       strings.TrimPrefix(subject, SubjectPrefix+"."),
		Data:       env.Data,
		OccurredAt: env.OccurredAt,
	}, nil
}

func connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}
