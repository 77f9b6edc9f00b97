// Package live turns committed writes into push updates. Writers publish
// change signals for topics; each live view owns a subscription that
// reloads its full snapshot whenever its topic is signalled.
package live

import "sync"

// Topic names the scope a change signal applies to.
type Topic string

// MessagesTopic is signalled when a message is appended to a session.
func MessagesTopic(sessionID string) Topic { return Topic("messages:" + sessionID) }

// IncomingTopic is signalled when a request addressed to userID changes.
func IncomingTopic(userID string) Topic { return Topic("requests.incoming:" + userID) }

// OutgoingTopic is signalled when a request sent by userID changes.
func OutgoingTopic(userID string) Topic { return Topic("requests.outgoing:" + userID) }

// SessionsTopic is signalled when one of userID's sessions changes.
func SessionsTopic(userID string) Topic { return Topic("sessions:" + userID) }

// Broker fans change signals out to in-process subscribers. Signals
// coalesce: a subscriber that has not consumed the previous signal does
// not queue another, so Notify never blocks.
type Broker struct {
	mu   sync.RWMutex
	subs map[Topic]map[chan struct{}]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic]map[chan struct{}]struct{})}
}

// Subscribe registers for signals on topic. The returned func removes the
// registration and is safe to call more than once.
func (b *Broker) Subscribe(topic Topic) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[chan struct{}]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if chans, ok := b.subs[topic]; ok {
				delete(chans, ch)
				if len(chans) == 0 {
					delete(b.subs, topic)
				}
			}
		})
	}
}

// Notify signals every subscriber of the given topics.
func (b *Broker) Notify(topics ...Topic) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, topic := range topics {
		for ch := range b.subs[topic] {
			signal(ch)
		}
	}
}

// NotifyAll signals every subscriber, used after a feed reconnects and
// may have missed changes.
func (b *Broker) NotifyAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, chans := range b.subs {
		for ch := range chans {
			signal(ch)
		}
	}
}

// Subscribers reports how many subscriptions exist for topic.
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
