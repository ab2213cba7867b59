package enums

import "fmt"

// RealtimeEvent is the event name carried by a push-channel frame.
type RealtimeEvent string

const (
	RealtimeEventConnect             RealtimeEvent = "connect"
	RealtimeEventDisconnect          RealtimeEvent = "disconnect"
	RealtimeEventConnectError        RealtimeEvent = "connect_error"
	RealtimeEventPriceAlertTriggered RealtimeEvent = "price_alert_triggered"
	RealtimeEventStockStatusChanged  RealtimeEvent = "stock_status_changed"
	RealtimeEventMessageSent         RealtimeEvent = "message_sent"
	RealtimeEventRFQStatusChanged    RealtimeEvent = "rfq_status_changed"
)

var validRealtimeEvents = []RealtimeEvent{
	RealtimeEventConnect,
	RealtimeEventDisconnect,
	RealtimeEventConnectError,
	RealtimeEventPriceAlertTriggered,
	RealtimeEventStockStatusChanged,
	RealtimeEventMessageSent,
	RealtimeEventRFQStatusChanged,
}

// String implements fmt.Stringer.
func (e RealtimeEvent) String() string {
	return string(e)
}

// IsValid reports whether the event name is recognized.
func (e RealtimeEvent) IsValid() bool {
	for _, candidate := range validRealtimeEvents {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsLifecycle reports whether the event describes the connection itself
// rather than a server-pushed domain event.
func (e RealtimeEvent) IsLifecycle() bool {
	switch e {
	case RealtimeEventConnect, RealtimeEventDisconnect, RealtimeEventConnectError:
		return true
	}
	return false
}

// ParseRealtimeEvent converts a raw event name into a RealtimeEvent.
func ParseRealtimeEvent(value string) (RealtimeEvent, error) {
	for _, candidate := range validRealtimeEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid realtime event %q", value)
}
