package testsetup

import (
	"context"
	"sync"
	"time"
)

// PublishedEvent is one call to Publish
type PublishedEvent struct {
	Channel string
	Event   string
	Payload interface{}
}

// Publisher records every event instead of sending it
type Publisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	notify chan struct{}
}

func NewPublisher() *Publisher {
	return &Publisher{notify: make(chan struct{}, 1)}
}

func (p *Publisher) Publish(ctx context.Context, channel, event string, payload interface{}) {
	p.mu.Lock()
	p.events = append(p.events, PublishedEvent{Channel: channel, Event: event, Payload: payload})
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything published so far
func (p *Publisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// Find returns the events with the given channel and name
func (p *Publisher) Find(channel, event string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []PublishedEvent
	for _, e := range p.events {
		if e.Channel == channel && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events named event were published on any channel
func (p *Publisher) Count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// WaitFor blocks until an event with channel and name shows up or timeout passes
func (p *Publisher) WaitFor(channel, event string, timeout time.Duration) (PublishedEvent, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if found := p.Find(channel, event); len(found) > 0 {
			return found[0], true
		}
		select {
		case <-p.notify:
		case <-deadline.C:
			return PublishedEvent{}, false
		}
	}
}

// Reset forgets recorded events
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
