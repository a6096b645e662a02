package gueststay

import (
	"context"
	"time"

	"gueststay/internal/domain/stay"
	"gueststay/internal/eventstore"
)

// DetailsRepository persists the read model projected from account streams.
type DetailsRepository interface {
	Get(ctx context.Context, id string) (*stay.Details, int64, error)
	ListByGuest(ctx context.Context, guestID string) ([]stay.Details, error)
	Save(ctx context.Context, d *stay.Details, version int64) (bool, error)
	DeleteAll(ctx context.Context) error
}

// Publisher receives events right after they were appended.
type Publisher interface {
	Publish(streamID string, events []eventstore.RecordedEvent)
}

type Metrics interface {
	RecordCommand(command, outcome string, duration time.Duration)
	RecordRetry(command string)
	RecordCheckoutFailure(reason string)
	RecordProjection(result string)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, []eventstore.RecordedEvent) {}

type noopMetrics struct{}

func (noopMetrics) RecordCommand(string, string, time.Duration) {}
func (noopMetrics) RecordRetry(string)                          {}
func (noopMetrics) RecordCheckoutFailure(string)                {}
func (noopMetrics) RecordProjection(string)                     {}
