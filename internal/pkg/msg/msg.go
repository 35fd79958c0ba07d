package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Topic is the class of a message.
type Topic int

const (
	// Status carries solve results.
	Status Topic = iota
	// Config carries the network snapshot a result was produced from.
	Config
)

func (t Topic) String() string {
	switch t {
	case Status:
		return "status"
	case Config:
		return "config"
	}
	return "unknown"
}

var (
	ErrSubscribed = errors.New("subscriber already registered on topic")
	ErrClosed     = errors.New("publisher closed")
)

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is the unit of data passed between a publisher and its subscribers
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message class
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans messages out to subscribers by topic. Every subscriber has
// its own queue, so Publish never blocks and a slow subscriber loses
// nothing.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	closed      bool
	subscribers map[Topic]map[uuid.UUID]*subscriber
}

// NewPublisher returns a PubSub sending as pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.Mutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]*subscriber),
	}
}

// PID returns the publisher's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe registers pid on topic. The returned channel is closed by
// Unsubscribe, or by Close once every queued message was delivered.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]*subscriber)
		p.subscribers[topic] = subs
	}
	if _, ok := subs[pid]; ok {
		return nil, ErrSubscribed
	}
	sub := newSubscriber()
	subs[pid] = sub
	return sub.out, nil
}

// Unsubscribe removes pid from every topic. Messages not yet received are
// discarded and the channels are closed.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if sub, ok := subs[pid]; ok {
			close(sub.done)
			delete(subs, pid)
		}
	}
}

// Publish queues payload for every subscriber of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	m := New(p.pid, topic, payload)
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	for _, sub := range p.subscribers[topic] {
		sub.push(m)
	}
}

// Close stops publishing. Each subscriber channel is closed after its queue
// has been delivered.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subscribers {
		for pid, sub := range subs {
			sub.close()
			delete(subs, pid)
		}
	}
}

// Subscribers returns the number of subscribers on topic.
func (p *PubSub) Subscribers(topic Topic) int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.subscribers[topic])
}

type subscriber struct {
	out     chan Msg
	wake    chan struct{}
	done    chan struct{}
	mux     sync.Mutex
	queue   []Msg
	closing bool
}

func newSubscriber() *subscriber {
	s := &subscriber{
		out:  make(chan Msg, 16),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) push(m Msg) {
	s.mux.Lock()
	s.queue = append(s.queue, m)
	s.mux.Unlock()
	s.signal()
}

func (s *subscriber) close() {
	s.mux.Lock()
	s.closing = true
	s.mux.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run moves queued messages to out until unsubscribed, or until closed with
// an empty queue.
func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mux.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mux.Unlock()
			if closing {
				return
			}
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			continue
		}
		m := s.queue[0]
		s.queue[0] = Msg{}
		s.queue = s.queue[1:]
		s.mux.Unlock()

		select {
		case s.out <- m:
		case <-s.done:
			return
		}
	}
}
