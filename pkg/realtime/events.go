package realtime

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/shopspring/decimal"
)

// Event is implemented by every typed realtime event.
type Event interface {
	Name() enums.RealtimeEvent
}

// Frame is the wire shape of a server push.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Connected is emitted each time the transport handshake succeeds.
type Connected struct{}

// Disconnected is emitted when an established connection drops.
type Disconnected struct {
	Reason string
}

// ConnectError is emitted for each failed connection attempt.
type ConnectError struct {
	Message string
	Attempt int
}

// PriceAlertTriggered and MessageSent only drive counters, so every field is
// optional and only checked for shape when present.
type PriceAlertTriggered struct {
	AlertID     string          `json:"alert_id"`
	VariantID   string          `json:"variant_id"`
	ShopID      string          `json:"shop_id"`
	ProductName string          `json:"product_name,omitempty"`
	OldPrice    decimal.Decimal `json:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	TriggeredAt time.Time       `json:"triggered_at"`
}

type StockStatusChanged struct {
	VariantID string           `json:"variant_id" validate:"required"`
	ShopID    string           `json:"shop_id" validate:"required"`
	Status    string           `json:"status" validate:"required"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	ChangedAt time.Time        `json:"changed_at"`
}

// MessageSent announces a new RFQ message.
type MessageSent struct {
	RFQID      string    `json:"rfq_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

type RFQStatusChanged struct {
	RFQID          string    `json:"rfq_id" validate:"required"`
	Status         string    `json:"status" validate:"required"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

func (Connected) Name() enums.RealtimeEvent           { return enums.RealtimeEventConnect }
func (Disconnected) Name() enums.RealtimeEvent        { return enums.RealtimeEventDisconnect }
func (ConnectError) Name() enums.RealtimeEvent        { return enums.RealtimeEventConnectError }
func (PriceAlertTriggered) Name() enums.RealtimeEvent { return enums.RealtimeEventPriceAlertTriggered }
func (StockStatusChanged) Name() enums.RealtimeEvent  { return enums.RealtimeEventStockStatusChanged }
func (MessageSent) Name() enums.RealtimeEvent         { return enums.RealtimeEventMessageSent }
func (RFQStatusChanged) Name() enums.RealtimeEvent    { return enums.RealtimeEventRFQStatusChanged }
