package stay

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gueststay/internal/pkg/dates"
)

// AccountIDPrefix starts every guest stay account stream id.
const AccountIDPrefix = "guest_stay_account-"

// Status names an Account variant.
type Status string

const (
	StatusNotExisting Status = "NotExisting"
	StatusOpened      Status = "Opened"
	StatusCheckedOut  Status = "CheckedOut"
)

// AccountID derives the aggregate id for a guest staying in a room on the
// UTC calendar day of date. One open account per guest, room and day.
// Guest and room ids are normalized and escaped, so a ':' inside an id never
// reads as a separator.
func AccountID(guestID, roomID string, date time.Time) string {
	return GuestStreamPrefix(guestID) + escapeIDPart(roomID) + ":" + dates.FormatUTCDay(date)
}

// GuestStreamPrefix is the common prefix of every account id of guestID.
func GuestStreamPrefix(guestID string) string {
	return AccountIDPrefix + escapeIDPart(guestID) + ":"
}

// NormalizeID trims surrounding whitespace from a guest or room id.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

func escapeIDPart(id string) string {
	return url.QueryEscape(NormalizeID(id))
}

// Account is the write-side state of a guest stay account. It is one of
// NotExisting, Opened or CheckedOut.
type Account interface {
	Status() Status
	isAccount()
}

// NotExisting is the state before check-in.
type NotExisting struct{}

// Opened is a checked-in guest. Balance is payments minus charges.
type Opened struct {
	Balance decimal.Decimal
}

// CheckedOut is terminal.
type CheckedOut struct{}

func (NotExisting) Status() Status { return StatusNotExisting }
func (Opened) Status() Status      { return StatusOpened }
func (CheckedOut) Status() Status  { return StatusCheckedOut }

func (NotExisting) isAccount() {}
func (Opened) isAccount()      {}
func (CheckedOut) isAccount()  {}

// InitialState is the state of an empty stream.
func InitialState() Account {
	return NotExisting{}
}

// IsSettled reports whether the balance is exactly zero.
func (o Opened) IsSettled() bool {
	return o.Balance.IsZero()
}
