package stay

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the stored name of an event.
type EventType string

const (
	EventGuestCheckedIn      EventType = "GuestCheckedIn"
	EventChargeRecorded      EventType = "ChargeRecorded"
	EventPaymentRecorded     EventType = "PaymentRecorded"
	EventGuestCheckedOut     EventType = "GuestCheckedOut"
	EventGuestCheckoutFailed EventType = "GuestCheckoutFailed"
)

// CheckoutFailureReason explains a GuestCheckoutFailed event.
type CheckoutFailureReason string

const (
	ReasonNotOpened         CheckoutFailureReason = "NotOpened"
	ReasonBalanceNotSettled CheckoutFailureReason = "BalanceNotSettled"
)

// Event is a fact recorded on a guest stay account stream.
type Event interface {
	Type() EventType
	AccountID() string
	OccurredAt() time.Time
	isEvent()
}

type GuestCheckedIn struct {
	GuestStayAccountID string    `json:"guestStayAccountId"`
	GuestID            string    `json:"guestId"`
	RoomID             string    `json:"roomId"`
	CheckedInAt        time.Time `json:"checkedInAt"`
}

type ChargeRecorded struct {
	GuestStayAccountID string          `json:"guestStayAccountId"`
	ChargeID           string          `json:"chargeId"`
	Amount             decimal.Decimal `json:"amount"`
	RecordedAt         time.Time       `json:"recordedAt"`
}

type PaymentRecorded struct {
	GuestStayAccountID string          `json:"guestStayAccountId"`
	PaymentID          string          `json:"paymentId"`
	Amount             decimal.Decimal `json:"amount"`
	RecordedAt         time.Time       `json:"recordedAt"`
}

type GuestCheckedOut struct {
	GuestStayAccountID string    `json:"guestStayAccountId"`
	CheckedOutAt       time.Time `json:"checkedOutAt"`
	GroupCheckoutID    string    `json:"groupCheckoutId,omitempty"`
}

type GuestCheckoutFailed struct {
	GuestStayAccountID string                `json:"guestStayAccountId"`
	Reason             CheckoutFailureReason `json:"reason"`
	FailedAt           time.Time             `json:"failedAt"`
	GroupCheckoutID    string                `json:"groupCheckoutId,omitempty"`
}

func (GuestCheckedIn) Type() EventType      { return EventGuestCheckedIn }
func (ChargeRecorded) Type() EventType      { return EventChargeRecorded }
func (PaymentRecorded) Type() EventType     { return EventPaymentRecorded }
func (GuestCheckedOut) Type() EventType     { return EventGuestCheckedOut }
func (GuestCheckoutFailed) Type() EventType { return EventGuestCheckoutFailed }

func (e GuestCheckedIn) AccountID() string      { return e.GuestStayAccountID }
func (e ChargeRecorded) AccountID() string      { return e.GuestStayAccountID }
func (e PaymentRecorded) AccountID() string     { return e.GuestStayAccountID }
func (e GuestCheckedOut) AccountID() string     { return e.GuestStayAccountID }
func (e GuestCheckoutFailed) AccountID() string { return e.GuestStayAccountID }

func (e GuestCheckedIn) OccurredAt() time.Time      { return e.CheckedInAt }
func (e ChargeRecorded) OccurredAt() time.Time      { return e.RecordedAt }
func (e PaymentRecorded) OccurredAt() time.Time     { return e.RecordedAt }
func (e GuestCheckedOut) OccurredAt() time.Time     { return e.CheckedOutAt }
func (e GuestCheckoutFailed) OccurredAt() time.Time { return e.FailedAt }

func (GuestCheckedIn) isEvent()      {}
func (ChargeRecorded) isEvent()      {}
func (PaymentRecorded) isEvent()     {}
func (GuestCheckedOut) isEvent()     {}
func (GuestCheckoutFailed) isEvent() {}
