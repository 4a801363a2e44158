// Package pubsub implements Thymos's in-process publish/subscribe layer:
// agents and subsystems exchange typed events on named topics without a
// broker, backed by Go channels rather than an external message queue.
package pubsub

import (
	"encoding/json"
	"time"
)

// Backend identifies which PubSub implementation is in use; distributed
// backends are a documented Non-goal but the discriminant stays so the
// interface doesn't need to change if one is added later.
type Backend string

const (
	BackendLocal       Backend = "local"
	BackendDistributed Backend = "distributed"
)

// Message is one published event on a topic.
type Message struct {
	Topic     string          `json:"topic"`
	Content   json.RawMessage `json:"content"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds a Message from any JSON-marshalable payload.
func NewMessage(topic string, content any, source string) (Message, error) {
	encoded, err := json.Marshal(content)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Content: encoded, Source: source, Timestamp: time.Now()}, nil
}

// Handler processes one message delivered to a subscription. Returning an
// error does not unsubscribe the handler; the delivery loop logs the error
// and goes on with the next message.
type Handler func(msg Message) error

// PubSub is implemented by every backend (local today, potentially a
// distributed one later).
type PubSub interface {
	Publish(topic string, content any, source string) error
	Subscribe(topic string, handler Handler) (*Subscription, error)
	IsDistributed() bool
	BackendType() Backend
}
