package stay

import (
	"time"

	"github.com/shopspring/decimal"
)

// Command is an intent against a guest stay account. Now is stamped by the
// caller so decisions stay deterministic.
type Command interface {
	Name() string
	isCommand()
}

type CheckIn struct {
	GuestID string    `validate:"required"`
	RoomID  string    `validate:"required"`
	Now     time.Time `validate:"required"`
}

type RecordCharge struct {
	GuestStayAccountID string `validate:"required"`
	ChargeID           string `validate:"required"`
	Amount             decimal.Decimal
	Now                time.Time `validate:"required"`
}

type RecordPayment struct {
	GuestStayAccountID string `validate:"required"`
	PaymentID          string `validate:"required"`
	Amount             decimal.Decimal
	Now                time.Time `validate:"required"`
}

type CheckOut struct {
	GuestStayAccountID string `validate:"required"`
	GroupCheckoutID    string
	Now                time.Time `validate:"required"`
}

func (CheckIn) Name() string       { return "CheckIn" }
func (RecordCharge) Name() string  { return "RecordCharge" }
func (RecordPayment) Name() string { return "RecordPayment" }
func (CheckOut) Name() string      { return "CheckOut" }

func (CheckIn) isCommand()       {}
func (RecordCharge) isCommand()  {}
func (RecordPayment) isCommand() {}
func (CheckOut) isCommand()      {}
