package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/matthewbaird/strata/internal/event"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "strata.events."

// MsgPublisher is the subset of *nats.Conn the forwarder needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSConsumer forwards every domain event to NATS as JSON on
// strata.events.<event_type>.
type NATSConsumer struct {
	pub MsgPublisher
}

func NewNATSConsumer(pub MsgPublisher) *NATSConsumer {
	return &NATSConsumer{pub: pub}
}

// Subject returns the subject an event is published on.
func Subject(evt event.DomainEvent) string {
	return SubjectPrefix + evt.EventType
}

func (c *NATSConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", evt.EventType, err)
	}
	msg := nats.NewMsg(Subject(evt))
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", evt.ID)
	msg.Header.Set("Content-Type", "application/json")
	if err := c.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", evt.EventType, err)
	}
	return nil
}

// ConnectNATS dials url with reconnect settings suited to a long-running server.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("strata"),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}
