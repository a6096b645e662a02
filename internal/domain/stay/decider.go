package stay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decide turns a command into the events it produces against state.
// CheckIn, RecordCharge and RecordPayment fail with an IllegalStateError when
// the account cannot accept them. CheckOut never fails: an account that
// cannot be checked out yields GuestCheckoutFailed instead.
func Decide(cmd Command, state Account) ([]Event, error) {
	switch c := cmd.(type) {
	case CheckIn:
		evt, err := checkIn(c, state)
		if err != nil {
			return nil, err
		}
		return []Event{evt}, nil
	case RecordCharge:
		evt, err := recordCharge(c, state)
		if err != nil {
			return nil, err
		}
		return []Event{evt}, nil
	case RecordPayment:
		evt, err := recordPayment(c, state)
		if err != nil {
			return nil, err
		}
		return []Event{evt}, nil
	case CheckOut:
		return []Event{checkOut(c, state)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidCommand, cmd)
	}
}

func checkIn(cmd CheckIn, state Account) (GuestCheckedIn, error) {
	if err := assertDoesNotExist(state); err != nil {
		return GuestCheckedIn{}, err
	}

	return GuestCheckedIn{
		GuestStayAccountID: AccountID(cmd.GuestID, cmd.RoomID, cmd.Now),
		GuestID:            cmd.GuestID,
		RoomID:             cmd.RoomID,
		CheckedInAt:        cmd.Now,
	}, nil
}

func recordCharge(cmd RecordCharge, state Account) (ChargeRecorded, error) {
	if err := assertPositive(cmd.Amount); err != nil {
		return ChargeRecorded{}, err
	}
	if err := assertIsOpened(state); err != nil {
		return ChargeRecorded{}, err
	}

	return ChargeRecorded{
		GuestStayAccountID: cmd.GuestStayAccountID,
		ChargeID:           cmd.ChargeID,
		Amount:             cmd.Amount,
		RecordedAt:         cmd.Now,
	}, nil
}

func recordPayment(cmd RecordPayment, state Account) (PaymentRecorded, error) {
	if err := assertPositive(cmd.Amount); err != nil {
		return PaymentRecorded{}, err
	}
	if err := assertIsOpened(state); err != nil {
		return PaymentRecorded{}, err
	}

	return PaymentRecorded{
		GuestStayAccountID: cmd.GuestStayAccountID,
		PaymentID:          cmd.PaymentID,
		Amount:             cmd.Amount,
		RecordedAt:         cmd.Now,
	}, nil
}

func checkOut(cmd CheckOut, state Account) Event {
	opened, ok := state.(Opened)
	if !ok {
		return GuestCheckoutFailed{
			GuestStayAccountID: cmd.GuestStayAccountID,
			Reason:             ReasonNotOpened,
			FailedAt:           cmd.Now,
			GroupCheckoutID:    cmd.GroupCheckoutID,
		}
	}

	if !opened.IsSettled() {
		return GuestCheckoutFailed{
			GuestStayAccountID: cmd.GuestStayAccountID,
			Reason:             ReasonBalanceNotSettled,
			FailedAt:           cmd.Now,
			GroupCheckoutID:    cmd.GroupCheckoutID,
		}
	}

	return GuestCheckedOut{
		GuestStayAccountID: cmd.GuestStayAccountID,
		CheckedOutAt:       cmd.Now,
		GroupCheckoutID:    cmd.GroupCheckoutID,
	}
}

func assertDoesNotExist(state Account) error {
	switch state.(type) {
	case NotExisting:
		return nil
	case Opened:
		return ErrAlreadyCheckedIn
	case CheckedOut:
		return ErrAlreadyCheckedOut
	default:
		return fmt.Errorf("%w: unexpected state %T", ErrInvalidCommand, state)
	}
}

func assertIsOpened(state Account) error {
	switch state.(type) {
	case Opened:
		return nil
	case NotExisting:
		return ErrAccountNotFound
	case CheckedOut:
		return ErrAlreadyCheckedOut
	default:
		return fmt.Errorf("%w: unexpected state %T", ErrInvalidCommand, state)
	}
}

func assertPositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
