package stay

import "github.com/shopspring/decimal"

// Evolve applies evt to state. Events that do not match the current state are
// ignored so replaying an already-applied event is harmless.
func Evolve(state Account, evt Event) Account {
	switch e := evt.(type) {
	case GuestCheckedIn:
		if _, ok := state.(NotExisting); ok {
			return Opened{Balance: decimal.Zero}
		}
		return state
	case ChargeRecorded:
		if opened, ok := state.(Opened); ok {
			return Opened{Balance: opened.Balance.Sub(e.Amount)}
		}
		return state
	case PaymentRecorded:
		if opened, ok := state.(Opened); ok {
			return Opened{Balance: opened.Balance.Add(e.Amount)}
		}
		return state
	case GuestCheckedOut:
		if _, ok := state.(Opened); ok {
			return CheckedOut{}
		}
		return state
	case GuestCheckoutFailed:
		return state
	default:
		return state
	}
}

// Fold replays events from the initial state.
func Fold(events []Event) Account {
	state := InitialState()
	for _, evt := range events {
		state = Evolve(state, evt)
	}
	return state
}
