package eventstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps streams in process memory. Useful for tests and the
// EVENT_STORE=memory mode.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]RecordedEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]RecordedEvent),
	}
}

func (s *MemoryStore) ReadStream(ctx context.Context, streamID string) ([]RecordedEvent, int64, error) {
	if streamID == "" {
		return nil, 0, ErrEmptyStreamID
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.streams[streamID]
	result := make([]RecordedEvent, len(events))
	copy(result, events)
	return result, int64(len(events)), nil
}

func (s *MemoryStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []EventData) (int64, error) {
	if streamID == "" {
		return 0, ErrEmptyStreamID
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.streams[streamID]
	current := int64(len(existing))
	if current != expectedVersion {
		return 0, fmt.Errorf("%w: stream %s is at version %d, expected %d", ErrVersionConflict, streamID, current, expectedVersion)
	}

	for i, e := range events {
		existing = append(existing, RecordedEvent{
			ID:         uuid.New(),
			StreamID:   streamID,
			Version:    current + int64(i) + 1,
			Type:       e.Type,
			Data:       append([]byte(nil), e.Data...),
			RecordedAt: e.RecordedAt,
		})
	}
	s.streams[streamID] = existing

	return int64(len(existing)), nil
}

func (s *MemoryStore) StreamIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for id, events := range s.streams {
		if len(events) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
