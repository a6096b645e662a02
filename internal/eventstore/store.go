package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict means another writer appended to the stream after
	// the caller read it.
	ErrVersionConflict = errors.New("stream version conflict")
	ErrEmptyStreamID   = errors.New("stream id is required")
)

// EventData is an event about to be appended.
type EventData struct {
	Type       string
	Data       []byte
	RecordedAt time.Time
}

// RecordedEvent is an event as stored. Versions start at 1 per stream.
type RecordedEvent struct {
	ID         uuid.UUID
	StreamID   string
	Version    int64
	Type       string
	Data       []byte
	RecordedAt time.Time
}

// Store is an append-only log of streams with conditional appends.
type Store interface {
	// ReadStream returns the stream's events in append order and its current
	// version, 0 for a stream that does not exist.
	ReadStream(ctx context.Context, streamID string) ([]RecordedEvent, int64, error)
	// Append writes events only if the stream is still at expectedVersion and
	// returns the new version. A mismatch yields ErrVersionConflict.
	Append(ctx context.Context, streamID string, expectedVersion int64, events []EventData) (int64, error)
	// StreamIDs lists every stream that has at least one event.
	StreamIDs(ctx context.Context) ([]string, error)
}
