package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/angelmondragon/buildmatch-client/pkg/validators"
)

// DecoderFunc turns a frame payload into a typed, validated Event.
type DecoderFunc func(payload json.RawMessage) (Event, error)

// DecoderRegistry maps server event names to payload decoders.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[enums.RealtimeEvent]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[enums.RealtimeEvent]DecoderFunc)}
}

// NewDefaultRegistry registers decoders for every domain event the server pushes.
func NewDefaultRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.RealtimeEventPriceAlertTriggered, decodeInto[PriceAlertTriggered])
	r.Register(enums.RealtimeEventStockStatusChanged, decodeInto[StockStatusChanged])
	r.Register(enums.RealtimeEventMessageSent, decodeInto[MessageSent])
	r.Register(enums.RealtimeEventRFQStatusChanged, decodeInto[RFQStatusChanged])
	return r
}

func (r *DecoderRegistry) Register(event enums.RealtimeEvent, decoder DecoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[event] = decoder
}

func (r *DecoderRegistry) Decode(event enums.RealtimeEvent, payload json.RawMessage) (Event, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[event]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s", event)
	}
	return decoder(payload)
}

// decodeInto decodes a missing payload as the zero event, leaving validation
// to reject events that cannot be routed without their identifiers.
func decodeInto[T Event](payload json.RawMessage) (Event, error) {
	var event T
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &event); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", event.Name(), err)
		}
	}
	if err := validators.Struct(event); err != nil {
		return nil, fmt.Errorf("%s: %w", event.Name(), err)
	}
	return event, nil
}
