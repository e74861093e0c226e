package livelist

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Relay forwards a change to other server instances.
type Relay interface {
	Publish(ctx context.Context, topic string) error
}

// Broker fans change notifications out to subscribers of a topic. Each
// subscriber holds at most one pending notification, so publishers never
// block on slow readers.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[chan struct{}]struct{}
	relay  Relay
	log    logrus.FieldLogger
}

func NewBroker(log logrus.FieldLogger) *Broker {
	return &Broker{
		topics: make(map[string]map[chan struct{}]struct{}),
		log:    log.WithField("component", "broker"),
	}
}

func (b *Broker) SetRelay(relay Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = relay
}

func (b *Broker) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[chan struct{}]struct{})
	}
	b.topics[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.topics[topic], ch)
			if len(b.topics[topic]) == 0 {
				delete(b.topics, topic)
			}
		})
	}
}

// Publish notifies local subscribers and, when a relay is set, the other
// instances.
func (b *Broker) Publish(ctx context.Context, topic string) {
	b.Notify(topic)
	b.mu.Lock()
	relay := b.relay
	b.mu.Unlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, topic); err != nil {
		b.log.WithError(err).WithField("topic", topic).Warn("change relay publish failed")
	}
}

// Notify delivers to local subscribers only.
func (b *Broker) Notify(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.topics[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
