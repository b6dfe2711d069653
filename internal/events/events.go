// Package events carries committed trip changes from the ledger to other
// parts of the system over watermill pub/sub. Each domain.EventKind is its
// own topic and payloads are JSON-encoded domain.TripEvent values.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// metadataKind is the message metadata key holding the event kind.
const metadataKind = "kind"

// Publisher turns domain events into watermill messages.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps a watermill publisher (gochannel in-process, or any
// broker-backed implementation).
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish sends ev on the topic named after its kind.
func (p *Publisher) Publish(ctx context.Context, ev domain.TripEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events.Publisher.Publish: marshal: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataKind, string(ev.Kind))
	msg.SetContext(ctx)

	if err := p.pub.Publish(string(ev.Kind), msg); err != nil {
		return fmt.Errorf("events.Publisher.Publish: %s: %w", ev.Kind, err)
	}
	return nil
}

// Decode parses a message produced by Publisher.
func Decode(msg *message.Message) (domain.TripEvent, error) {
	var ev domain.TripEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return domain.TripEvent{}, fmt.Errorf("events.Decode: %w", err)
	}
	return ev, nil
}

// HandlerFunc processes one decoded event. A returned error nacks the message.
type HandlerFunc func(ctx context.Context, ev domain.TripEvent) error

// Subscribe registers handle on every event topic before returning, then
// consumes in the background until ctx is cancelled or the subscriber is
// closed. The returned wait function blocks until all consumers have exited.
func Subscribe(ctx context.Context, sub message.Subscriber, handle HandlerFunc) (wait func(), err error) {
	var wg sync.WaitGroup
	for _, kind := range domain.EventKinds {
		ch, err := sub.Subscribe(ctx, string(kind))
		if err != nil {
			return nil, fmt.Errorf("events.Subscribe: %s: %w", kind, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range ch {
				ev, err := Decode(msg)
				if err != nil {
					// A payload that cannot be decoded will never succeed; drop it.
					msg.Ack()
					continue
				}
				if err := handle(msg.Context(), ev); err != nil {
					msg.Nack()
					continue
				}
				msg.Ack()
			}
		}()
	}
	return wg.Wait, nil
}
