package notifications

import (
	"context"
	"sync"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
)

// Counts tracks unread notifications per category plus the overall total.
type Counts struct {
	UnreadCount         int `json:"unread_count"`
	PriceAlerts         int `json:"price_alerts"`
	RFQMessages         int `json:"rfq_messages"`
	SystemNotifications int `json:"system_notifications"`
}

// CountsPatch overwrites the non-nil counters.
type CountsPatch struct {
	UnreadCount         *int
	PriceAlerts         *int
	RFQMessages         *int
	SystemNotifications *int
}

// Service defines unread counter operations.
type Service interface {
	UpdateCounts(ctx context.Context, patch CountsPatch) error
	MarkRead(ctx context.Context, category enums.NotificationCategory) error
	MarkAllRead(ctx context.Context)
	Increment(ctx context.Context, category enums.NotificationCategory) error
	Reset(ctx context.Context)

	Counts() Counts
	Hydrate(c Counts)
}

type service struct {
	onChange func(ctx context.Context)

	mu     sync.RWMutex
	counts Counts
}

// NewService builds the counters. onChange may be nil.
func NewService(onChange func(ctx context.Context)) Service {
	return &service{onChange: onChange}
}

func (s *service) UpdateCounts(ctx context.Context, patch CountsPatch) error {
	for _, v := range []*int{patch.UnreadCount, patch.PriceAlerts, patch.RFQMessages, patch.SystemNotifications} {
		if v != nil && *v < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "counts must not be negative")
		}
	}
	s.mu.Lock()
	if patch.UnreadCount != nil {
		s.counts.UnreadCount = *patch.UnreadCount
	}
	if patch.PriceAlerts != nil {
		s.counts.PriceAlerts = *patch.PriceAlerts
	}
	if patch.RFQMessages != nil {
		s.counts.RFQMessages = *patch.RFQMessages
	}
	if patch.SystemNotifications != nil {
		s.counts.SystemNotifications = *patch.SystemNotifications
	}
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

// MarkRead zeroes a category and removes its prior value from the total.
func (s *service) MarkRead(ctx context.Context, category enums.NotificationCategory) error {
	s.mu.Lock()
	counter := s.counter(category)
	if counter == nil {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown notification category")
	}
	s.counts.UnreadCount -= *counter
	if s.counts.UnreadCount < 0 {
		s.counts.UnreadCount = 0
	}
	*counter = 0
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

func (s *service) MarkAllRead(ctx context.Context) {
	s.Reset(ctx)
}

func (s *service) Increment(ctx context.Context, category enums.NotificationCategory) error {
	s.mu.Lock()
	counter := s.counter(category)
	if counter == nil {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown notification category")
	}
	*counter++
	s.counts.UnreadCount++
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

func (s *service) Reset(ctx context.Context) {
	s.mu.Lock()
	s.counts = Counts{}
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *service) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

func (s *service) Hydrate(c Counts) {
	for _, v := range []*int{&c.UnreadCount, &c.PriceAlerts, &c.RFQMessages, &c.SystemNotifications} {
		if *v < 0 {
			*v = 0
		}
	}
	s.mu.Lock()
	s.counts = c
	s.mu.Unlock()
}

// counter must be called with mu held.
func (s *service) counter(category enums.NotificationCategory) *int {
	switch category {
	case enums.NotificationCategoryPriceAlerts:
		return &s.counts.PriceAlerts
	case enums.NotificationCategoryRFQMessages:
		return &s.counts.RFQMessages
	case enums.NotificationCategorySystem:
		return &s.counts.SystemNotifications
	}
	return nil
}

func (s *service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}
