// Package pubsub implements a generic publish-subscribe interface.
package pubsub

import (
	"sync"

	"github.com/eapache/channels"
)

// ClosableSubscription is an interface for a subscription that can be
// closed.
type ClosableSubscription interface {
	// Close closes the subscription.
	Close()
}

// Subscription is a Broker subscription instance.
type Subscription struct {
	b  *Broker
	ch channels.Channel
}

// Untyped returns the subscription's untyped output.
func (s *Subscription) Untyped() <-chan interface{} {
	return s.ch.Out()
}

// Unwrap ties the read end of the provided channel to the subscription's
// output.  The provided channel is closed when the subscription is.
func (s *Subscription) Unwrap(ch interface{}) {
	channels.Unwrap(s.ch, ch)
}

// Close unsubscribes from the Broker.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// Broker is a pubsub broker.
type Broker struct {
	sync.Mutex

	subscribers map[*Subscription]bool

	lastMsg            interface{}
	hasLastMsg         bool
	pubLastOnSubscribe bool
}

// Subscribe subscribes to the Broker's broadcasts, and returns a
// subscription handle that can be used to receive broadcasts.
//
// Note: The returned subscription's channel will have an unbounded
// capacity, use SubscribeBuffered to use a bounded ring channel.
func (b *Broker) Subscribe() *Subscription {
	return b.SubscribeBuffered(int64(channels.Infinity))
}

// SubscribeBuffered subscribes to the Broker's broadcasts, and returns a
// subscription handle that can be used to receive broadcasts.
//
// Buffer controls the capacity of a ring buffer, when the buffer is full
// the oldest undelivered message is overwritten.
func (b *Broker) SubscribeBuffered(buffer int64) *Subscription {
	var ch channels.Channel
	if buffer == int64(channels.Infinity) {
		ch = channels.NewInfiniteChannel()
	} else {
		ch = channels.NewRingChannel(channels.BufferCap(buffer))
	}

	sub := &Subscription{
		b:  b,
		ch: ch,
	}

	b.Lock()
	defer b.Unlock()

	b.subscribers[sub] = true
	if b.pubLastOnSubscribe && b.hasLastMsg {
		sub.ch.In() <- b.lastMsg
	}

	return sub
}

// Broadcast dispatches a message to all current subscribers.
func (b *Broker) Broadcast(v interface{}) {
	b.Lock()
	defer b.Unlock()

	for sub := range b.subscribers {
		sub.ch.In() <- v
	}

	if b.pubLastOnSubscribe {
		b.lastMsg = v
		b.hasLastMsg = true
	}
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.Lock()
	defer b.Unlock()

	if !b.subscribers[sub] {
		return
	}
	delete(b.subscribers, sub)
	sub.ch.Close()
}

// NewBroker creates a new pubsub broker.  If pubLastOnSubscribe is set,
// the last broadcasted value is sent to each new subscriber.
func NewBroker(pubLastOnSubscribe bool) *Broker {
	return &Broker{
		subscribers:        make(map[*Subscription]bool),
		pubLastOnSubscribe: pubLastOnSubscribe,
	}
}
