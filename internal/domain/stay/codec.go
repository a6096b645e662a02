package stay

import (
	"encoding/json"
	"fmt"
)

// MarshalEvent returns the stored type name and JSON payload of evt.
func MarshalEvent(evt Event) (EventType, []byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s: %w", evt.Type(), err)
	}
	return evt.Type(), data, nil
}

// UnmarshalEvent decodes a stored payload back into its event.
func UnmarshalEvent(eventType EventType, data []byte) (Event, error) {
	switch eventType {
	case EventGuestCheckedIn:
		return decode[GuestCheckedIn](eventType, data)
	case EventChargeRecorded:
		return decode[ChargeRecorded](eventType, data)
	case EventPaymentRecorded:
		return decode[PaymentRecorded](eventType, data)
	case EventGuestCheckedOut:
		return decode[GuestCheckedOut](eventType, data)
	case EventGuestCheckoutFailed:
		return decode[GuestCheckoutFailed](eventType, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}
}

func decode[T Event](eventType EventType, data []byte) (Event, error) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return evt, nil
}
