package enums

import "fmt"

// NotificationCategory names one of the per-category unread counters.
type NotificationCategory string

const (
	NotificationCategoryPriceAlerts NotificationCategory = "price_alerts"
	NotificationCategoryRFQMessages NotificationCategory = "rfq_messages"
	NotificationCategorySystem      NotificationCategory = "system_notifications"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategoryPriceAlerts,
	NotificationCategoryRFQMessages,
	NotificationCategorySystem,
}

func (n NotificationCategory) String() string {
	return string(n)
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	for _, candidate := range validNotificationCategories {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationCategory converts raw strings into NotificationCategory.
func ParseNotificationCategory(value string) (NotificationCategory, error) {
	for _, candidate := range validNotificationCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}
