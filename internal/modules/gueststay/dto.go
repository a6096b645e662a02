package gueststay

import (
	"time"

	"github.com/shopspring/decimal"

	"gueststay/internal/domain/stay"
)

type RecordChargeRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	ChargeID string          `json:"chargeId"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaymentID string          `json:"paymentId"`
}

type CheckInResponse struct {
	ID          string    `json:"id"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

type TransactionResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Amount     float64   `json:"amount"`
	RecordedAt time.Time `json:"recordedAt"`
}

type DetailsResponse struct {
	ID                string                `json:"id"`
	GuestID           string                `json:"guestId"`
	RoomID            string                `json:"roomId"`
	Status            string                `json:"status"`
	Balance           float64               `json:"balance"`
	TransactionsCount int                   `json:"transactionsCount"`
	Transactions      []TransactionResponse `json:"transactions"`
	CheckedInAt       time.Time             `json:"checkedInAt"`
	CheckedOutAt      *time.Time            `json:"checkedOutAt,omitempty"`
}

func toDetailsResponse(d stay.Details) DetailsResponse {
	txns := make([]TransactionResponse, 0, len(d.Transactions))
	for _, t := range d.Transactions {
		txns = append(txns, TransactionResponse{
			ID:         t.ID,
			Kind:       string(t.Kind),
			Amount:     t.Amount.InexactFloat64(),
			RecordedAt: t.RecordedAt,
		})
	}

	return DetailsResponse{
		ID:                d.ID,
		GuestID:           d.GuestID,
		RoomID:            d.RoomID,
		Status:            string(d.Status),
		Balance:           d.Balance.InexactFloat64(),
		TransactionsCount: d.TransactionsCount,
		Transactions:      txns,
		CheckedInAt:       d.CheckedInAt,
		CheckedOutAt:      d.CheckedOutAt,
	}
}
