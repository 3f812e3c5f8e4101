// Package events publishes domain events to interested consumers.
package events

import (
	"context"
	"errors"
	"sync"
)

const (
	TopicGameCompleted         = "game.completed"
	TopicFeedbackSubmitted     = "feedback.submitted"
	TopicFeedbackStatusChanged = "feedback.status_changed"
)

// Publisher delivers a JSON-encodable payload on a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Event is a published topic and payload
type Event struct {
	Topic   string
	Payload any
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, topic string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Topics returns the recorded topics in publish order
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, len(r.events))
	for i, e := range r.events {
		topics[i] = e.Topic
	}
	return topics
}
