// Package msg is the in-process publish/subscribe network that carries run
// events from the planner to its result sinks.
package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Topic selects the events a subscriber receives.
type Topic int

const (
	// Progress carries model.Progress updates while the model is assembled.
	Progress Topic = iota
	// Status carries run lifecycle events.
	Status
	// Result carries a *results.Results once a run has been solved.
	Result
)

func (t Topic) String() string {
	switch t {
	case Progress:
		return "progress"
	case Status:
		return "status"
	case Result:
		return "result"
	}
	return "unknown"
}

// Publisher is an interface for objects that allow subscription to their events.
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a single event with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function.
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID.
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic.
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data.
func (v Msg) Payload() interface{} {
	return v.payload
}

// ErrClosed is returned when subscribing to a closed PubSub.
var ErrClosed = errors.New("msg: publisher is closed")

// SubscriberBuffer is the channel depth handed to each subscriber. Publish
// blocks once a subscriber falls this far behind.
const SubscriberBuffer = 64

// PubSub fans messages out to every subscriber of their topic.
type PubSub struct {
	mux    sync.Mutex
	pid    uuid.UUID
	subs   map[Topic]map[uuid.UUID]chan Msg
	closed bool
}

// NewPublisher returns a PubSub that stamps pid on the messages it publishes.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		pid:  pid,
		subs: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is the publisher's own id.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel on which topic is broadcast. A second
// subscription of the same pid and topic returns the existing channel.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	subs, ok := p.subs[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subs[topic] = subs
	}
	if ch, ok := subs[pid]; ok {
		return ch, nil
	}
	ch := make(chan Msg, SubscriberBuffer)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe removes pid from every topic and closes its channels.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subs {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload to the subscribers of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.Forward(New(p.pid, topic, payload))
}

// Forward sends m unchanged to the subscribers of its topic.
func (p *PubSub) Forward(m Msg) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	for _, ch := range p.subs[m.topic] {
		ch <- m
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subs {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
	}
}
