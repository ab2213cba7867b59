package store

import (
	"context"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
)

// HandleEvent applies a realtime event to the counters and fans it out to
// subscribers.
func (s *Store) HandleEvent(ctx context.Context, event realtime.Event) {
	ctx = s.logg.WithEvent(ctx, event.Name().String())
	switch ev := event.(type) {
	case realtime.PriceAlertTriggered:
		if err := s.notifications.Increment(ctx, enums.NotificationCategoryPriceAlerts); err != nil {
			s.logg.Error(ctx, "count price alert", err)
		}
	case realtime.MessageSent:
		if err := s.notifications.Increment(ctx, enums.NotificationCategoryRFQMessages); err != nil {
			s.logg.Error(ctx, "count rfq message", err)
		}
	case realtime.StockStatusChanged:
		s.comparison.ApplyStockStatus(ctx, ev.VariantID, ev.ShopID, ev.Status)
	case realtime.Connected:
		s.logg.Info(ctx, "realtime connected")
	case realtime.Disconnected:
		s.logg.Warn(s.logg.WithField(ctx, "reason", ev.Reason), "realtime disconnected")
	case realtime.ConnectError:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"attempt": ev.Attempt,
			"error":   ev.Message,
		}), "realtime connect failed")
	}

	s.subMu.RLock()
	subs := make([]func(context.Context, realtime.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(ctx, event)
	}
}

// Subscribe registers fn for every realtime event and returns its
// unsubscribe func. fn runs on the realtime read goroutine and must not call
// Logout or Close.
func (s *Store) Subscribe(fn func(ctx context.Context, event realtime.Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once bool
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
	}
}
