package stay

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind tells charges from payments in the details view.
type TransactionKind string

const (
	TransactionCharge  TransactionKind = "charge"
	TransactionPayment TransactionKind = "payment"
)

// Transaction is one charge or payment in the details view.
type Transaction struct {
	ID         string
	Kind       TransactionKind
	Amount     decimal.Decimal
	RecordedAt time.Time
}

// Details is the query-side view of a guest stay account. A nil *Details
// means no check-in has been projected yet.
type Details struct {
	ID                string
	GuestID           string
	RoomID            string
	Status            Status
	Balance           decimal.Decimal
	TransactionsCount int
	Transactions      []Transaction
	CheckedInAt       time.Time
	CheckedOutAt      *time.Time
}

// EvolveDetails folds evt into the details view. It never mutates d; a new
// value is returned whenever the view changes.
func EvolveDetails(d *Details, evt Event) *Details {
	switch e := evt.(type) {
	case GuestCheckedIn:
		if d != nil {
			return d
		}
		return &Details{
			ID:           e.GuestStayAccountID,
			GuestID:      e.GuestID,
			RoomID:       e.RoomID,
			Status:       StatusOpened,
			Balance:      decimal.Zero,
			Transactions: []Transaction{},
			CheckedInAt:  e.CheckedInAt,
		}
	case ChargeRecorded:
		if d == nil || d.Status != StatusOpened {
			return d
		}
		next := d.withTransaction(Transaction{ID: e.ChargeID, Kind: TransactionCharge, Amount: e.Amount, RecordedAt: e.RecordedAt})
		next.Balance = d.Balance.Sub(e.Amount)
		return next
	case PaymentRecorded:
		if d == nil || d.Status != StatusOpened {
			return d
		}
		next := d.withTransaction(Transaction{ID: e.PaymentID, Kind: TransactionPayment, Amount: e.Amount, RecordedAt: e.RecordedAt})
		next.Balance = d.Balance.Add(e.Amount)
		return next
	case GuestCheckedOut:
		if d == nil || d.Status != StatusOpened {
			return d
		}
		next := *d
		checkedOutAt := e.CheckedOutAt
		next.Status = StatusCheckedOut
		next.CheckedOutAt = &checkedOutAt
		return &next
	case GuestCheckoutFailed:
		return d
	default:
		return d
	}
}

// FoldDetails replays events into a details view.
func FoldDetails(events []Event) *Details {
	var d *Details
	for _, evt := range events {
		d = EvolveDetails(d, evt)
	}
	return d
}

func (d *Details) withTransaction(tx Transaction) *Details {
	next := *d
	next.Transactions = make([]Transaction, 0, len(d.Transactions)+1)
	next.Transactions = append(next.Transactions, d.Transactions...)
	next.Transactions = append(next.Transactions, tx)
	next.TransactionsCount = d.TransactionsCount + 1
	return &next
}
