package pubsub

import (
	"log/slog"
	"sync"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/thyerrors"
)

// subscriberBufferSize bounds how many pending messages a slow subscriber
// may queue; once its inbox is full, Publish skips it for further messages.
const subscriberBufferSize = 64

// Subscription is a handle returned by Subscribe; call Unsubscribe to stop
// receiving messages and release the underlying goroutine.
type Subscription struct {
	ID    string
	Topic string

	unsubscribe func()
	once        sync.Once
}

// Unsubscribe stops delivery to this subscription's handler. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

type subscriber struct {
	id      string
	handler Handler
	inbox   chan Message
	done    chan struct{}
}

// LocalPubSub delivers messages to subscribers of the same process using
// one buffered channel and goroutine per subscription; no message crosses
// a process boundary.
type LocalPubSub struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
}

// NewLocalPubSub builds an empty in-process pub/sub instance.
func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{topics: make(map[string][]*subscriber)}
}

// Publish fans content out to every current subscriber of topic. A
// subscriber whose inbox is full is skipped for this message rather than
// blocking the publisher indefinitely.
func (p *LocalPubSub) Publish(topic string, content any, source string) error {
	if topic == "" {
		return thyerrors.New(thyerrors.KindInvalidArgument, "topic name must not be empty")
	}

	msg, err := NewMessage(topic, content, source)
	if err != nil {
		return thyerrors.Newf(thyerrors.KindInvalidArgument, "encode message content: %v", err)
	}

	p.mu.RLock()
	subs := append([]*subscriber(nil), p.topics[topic]...)
	p.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
		case <-sub.done:
		default:
		}
	}

	return nil
}

// Subscribe registers handler to be called for every message published to
// topic from now on, on its own goroutine.
func (p *LocalPubSub) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if topic == "" {
		return nil, thyerrors.New(thyerrors.KindInvalidArgument, "topic name must not be empty")
	}

	sub := &subscriber{
		id:      idgen.UUID(),
		handler: handler,
		inbox:   make(chan Message, subscriberBufferSize),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	p.topics[topic] = append(p.topics[topic], sub)
	p.mu.Unlock()

	go p.deliver(sub)

	handle := &Subscription{ID: sub.id, Topic: topic}
	handle.unsubscribe = func() {
		close(sub.done)
		p.mu.Lock()
		defer p.mu.Unlock()
		subs := p.topics[topic]
		for i, s := range subs {
			if s == sub {
				p.topics[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return handle, nil
}

func (p *LocalPubSub) deliver(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.inbox:
			if err := sub.handler(msg); err != nil {
				slog.Warn("pubsub handler failed", "subscription_id", sub.id, "topic", msg.Topic, "error", err)
			}
		}
	}
}

// IsDistributed always reports false for the local backend.
func (p *LocalPubSub) IsDistributed() bool { return false }

// BackendType always reports BackendLocal.
func (p *LocalPubSub) BackendType() Backend { return BackendLocal }
