package stay

import "errors"

// IllegalStateError rejects a command the account cannot accept in its
// current state. It is never retried.
type IllegalStateError struct {
	Message string
}

func (e *IllegalStateError) Error() string {
	return e.Message
}

var (
	ErrAlreadyCheckedIn  = &IllegalStateError{Message: "Guest is already checked-in!"}
	ErrAlreadyCheckedOut = &IllegalStateError{Message: "Guest account is already checked out"}
	ErrAccountNotFound   = &IllegalStateError{Message: "Guest account doesn't exist!"}
)

var (
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidCommand = errors.New("invalid command")
	ErrUnknownEvent   = errors.New("unknown event type")
)

// IsIllegalState reports whether err carries an IllegalStateError.
func IsIllegalState(err error) bool {
	var target *IllegalStateError
	return errors.As(err, &target)
}
