// Package events publishes domain events after their changes commit.
// Delivery is best effort: a failed publish is logged, never returned to the
// operation that produced it.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Routing keys.
const (
	BookingCreated        = "booking.created"
	BookingUpdated        = "booking.updated"
	BookingCancelled      = "booking.cancelled"
	BookingConfirmed      = "booking.confirmed"
	BookingCompleted      = "booking.completed"
	PaymentSubmitted      = "payment.submitted"
	PaymentApproved       = "payment.approved"
	PaymentRejected       = "payment.rejected"
	MatchCompleted        = "league.match_completed"
	AvailabilityRequested = "availability.requested"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, data any) error
}

// Emit publishes and logs failures.
func Emit(ctx context.Context, p Publisher, key string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, key, data); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event", key).Msg("Failed to publish event")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, key string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Envelope{Type: key, OccurredAt: time.Now(), Data: data})
	return nil
}

// Keys returns the routing keys published so far, in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i, e := range r.events {
		keys[i] = e.Type
	}
	return keys
}

// Count returns how many events were published with key.
func (r *Recorder) Count(key string) int {
	n := 0
	for _, k := range r.Keys() {
		if k == key {
			n++
		}
	}
	return n
}
