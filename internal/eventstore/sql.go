package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// EventRecord is the row layout of the events table.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	StreamID   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_events_stream_version,priority:1"`
	Version    int64     `gorm:"not null;uniqueIndex:idx_events_stream_version,priority:2"`
	Type       string    `gorm:"type:varchar(64);not null"`
	Data       []byte    `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null;index"`
}

func (EventRecord) TableName() string {
	return "events"
}

func (r *EventRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SQLStore keeps streams in the events table. The unique index on
// (stream_id, version) is what finally rejects racing writers.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) ReadStream(ctx context.Context, streamID string) ([]RecordedEvent, int64, error) {
	if streamID == "" {
		return nil, 0, ErrEmptyStreamID
	}

	var records []EventRecord
	if err := s.db.WithContext(ctx).Where("stream_id = ?", streamID).Order("version asc").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("read stream %s: %w", streamID, err)
	}

	events := make([]RecordedEvent, 0, len(records))
	for _, r := range records {
		events = append(events, toRecordedEvent(r))
	}

	var version int64
	if len(events) > 0 {
		version = events[len(events)-1].Version
	}
	return events, version, nil
}

func (s *SQLStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []EventData) (int64, error) {
	if streamID == "" {
		return 0, ErrEmptyStreamID
	}

	newVersion := expectedVersion + int64(len(events))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&EventRecord{}).
			Where("stream_id = ?", streamID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: stream %s is at version %d, expected %d", ErrVersionConflict, streamID, current, expectedVersion)
		}
		if len(events) == 0 {
			return nil
		}

		records := make([]EventRecord, 0, len(events))
		for i, e := range events {
			records = append(records, EventRecord{
				StreamID:   streamID,
				Version:    expectedVersion + int64(i) + 1,
				Type:       e.Type,
				Data:       e.Data,
				RecordedAt: e.RecordedAt.UTC(),
			})
		}
		if err := tx.Create(&records).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: stream %s: %v", ErrVersionConflict, streamID, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("append to stream %s: %w", streamID, err)
	}

	return newVersion, nil
}

func (s *SQLStore) StreamIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&EventRecord{}).Distinct("stream_id").Order("stream_id").Pluck("stream_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return ids, nil
}

func toRecordedEvent(r EventRecord) RecordedEvent {
	return RecordedEvent{
		ID:         r.ID,
		StreamID:   r.StreamID,
		Version:    r.Version,
		Type:       r.Type,
		Data:       r.Data,
		RecordedAt: r.RecordedAt,
	}
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
