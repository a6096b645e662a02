package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gueststay/internal/domain/stay"
)

var ErrStayNotFound = errors.New("guest stay not found")

// StayDetailsRow is the projected guest stay account.
type StayDetailsRow struct {
	ID                string          `gorm:"column:id;type:varchar(255);primaryKey"`
	GuestID           string          `gorm:"column:guest_id;type:varchar(255);not null;index"`
	RoomID            string          `gorm:"column:room_id;type:varchar(255);not null"`
	Status            string          `gorm:"column:status;type:varchar(16);not null;index"`
	Balance           decimal.Decimal `gorm:"column:balance;type:decimal(18,4);not null"`
	TransactionsCount int             `gorm:"column:transactions_count;not null;default:0"`
	CheckedInAt       time.Time       `gorm:"column:checked_in_at;not null"`
	CheckedOutAt      *time.Time      `gorm:"column:checked_out_at"`
	StreamVersion     int64           `gorm:"column:stream_version;not null"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Transactions []StayTransactionRow `gorm:"foreignKey:StayID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (StayDetailsRow) TableName() string { return "guest_stay_details" }

// StayTransactionRow is one charge or payment of a projected stay.
type StayTransactionRow struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	StayID        string          `gorm:"column:stay_id;type:varchar(255);not null;index"`
	Position      int             `gorm:"column:position;not null"`
	TransactionID string          `gorm:"column:transaction_id;type:varchar(255);not null"`
	Kind          string          `gorm:"column:kind;type:varchar(16);not null;check:kind IN ('charge','payment')"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(18,4);not null"`
	RecordedAt    time.Time       `gorm:"column:recorded_at;not null"`
}

func (StayTransactionRow) TableName() string { return "guest_stay_transactions" }

// Models lists the projection tables for migrations.
func Models() []any {
	return []any{&StayDetailsRow{}, &StayTransactionRow{}}
}

type StayDetailsRepository struct {
	db *gorm.DB
}

func NewStayDetailsRepository(db *gorm.DB) *StayDetailsRepository {
	return &StayDetailsRepository{db: db}
}

// Get returns the projected details and the stream version they reflect.
func (r *StayDetailsRepository) Get(ctx context.Context, id string) (*stay.Details, int64, error) {
	var row StayDetailsRow
	err := r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrStayNotFound
		}
		return nil, 0, err
	}
	return toDomainDetails(row), row.StreamVersion, nil
}

// ListByGuest returns every projected stay of a guest, newest check-in first.
func (r *StayDetailsRepository) ListByGuest(ctx context.Context, guestID string) ([]stay.Details, error) {
	var rows []StayDetailsRow
	err := r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("guest_id = ?", guestID).
		Order("checked_in_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]stay.Details, 0, len(rows))
	for _, row := range rows {
		out = append(out, *toDomainDetails(row))
	}
	return out, nil
}

// Save stores d as of stream version. A row already at the same or a newer
// version is left alone, so late writers cannot roll the view back.
func (r *StayDetailsRepository) Save(ctx context.Context, d *stay.Details, version int64) (bool, error) {
	if d == nil {
		return false, nil
	}

	saved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current StayDetailsRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", d.ID).First(&current).Error
		switch {
		case err == nil:
			if current.StreamVersion >= version {
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		row := toStayDetailsRow(d, version)
		if err := tx.Omit("Transactions").Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("save stay %s: %w", d.ID, err)
		}
		if err := tx.Where("stay_id = ?", d.ID).Delete(&StayTransactionRow{}).Error; err != nil {
			return err
		}
		if len(row.Transactions) > 0 {
			if err := tx.Create(&row.Transactions).Error; err != nil {
				return fmt.Errorf("save stay %s transactions: %w", d.ID, err)
			}
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

// DeleteAll clears the projection before a rebuild.
func (r *StayDetailsRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&StayTransactionRow{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&StayDetailsRow{}).Error
	})
}

func toDomainDetails(row StayDetailsRow) *stay.Details {
	txns := make([]stay.Transaction, 0, len(row.Transactions))
	for _, t := range row.Transactions {
		txns = append(txns, stay.Transaction{
			ID:         t.TransactionID,
			Kind:       stay.TransactionKind(t.Kind),
			Amount:     t.Amount,
			RecordedAt: t.RecordedAt,
		})
	}

	return &stay.Details{
		ID:                row.ID,
		GuestID:           row.GuestID,
		RoomID:            row.RoomID,
		Status:            stay.Status(row.Status),
		Balance:           row.Balance,
		TransactionsCount: row.TransactionsCount,
		Transactions:      txns,
		CheckedInAt:       row.CheckedInAt,
		CheckedOutAt:      row.CheckedOutAt,
	}
}

func toStayDetailsRow(d *stay.Details, version int64) StayDetailsRow {
	txns := make([]StayTransactionRow, 0, len(d.Transactions))
	for i, t := range d.Transactions {
		txns = append(txns, StayTransactionRow{
			StayID:        d.ID,
			Position:      i,
			TransactionID: t.ID,
			Kind:          string(t.Kind),
			Amount:        t.Amount,
			RecordedAt:    t.RecordedAt.UTC(),
		})
	}

	var checkedOutAt *time.Time
	if d.CheckedOutAt != nil {
		v := d.CheckedOutAt.UTC()
		checkedOutAt = &v
	}

	return StayDetailsRow{
		ID:                d.ID,
		GuestID:           d.GuestID,
		RoomID:            d.RoomID,
		Status:            string(d.Status),
		Balance:           d.Balance,
		TransactionsCount: d.TransactionsCount,
		CheckedInAt:       d.CheckedInAt.UTC(),
		CheckedOutAt:      checkedOutAt,
		StreamVersion:     version,
		Transactions:      txns,
	}
}
