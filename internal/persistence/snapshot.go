package persistence

import (
	"time"

	"github.com/angelmondragon/buildmatch-client/internal/bom"
	"github.com/angelmondragon/buildmatch-client/internal/comparison"
	"github.com/angelmondragon/buildmatch-client/internal/location"
	"github.com/angelmondragon/buildmatch-client/internal/notifications"
	"github.com/angelmondragon/buildmatch-client/internal/preferences"
	"github.com/angelmondragon/buildmatch-client/internal/session"
)

// CurrentVersion is the envelope version written by Save.
const CurrentVersion = 1

// Snapshot is the durable part of the store. Loading/error flags and
// realtime connection state are never included.
type Snapshot struct {
	Session       session.Persisted       `json:"session"`
	BOM           bom.Draft               `json:"bom"`
	Comparison    comparison.Set          `json:"comparison"`
	Location      location.Location       `json:"location"`
	Preferences   preferences.Preferences `json:"preferences"`
	Notifications notifications.Counts    `json:"notifications"`
}

type envelope struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Data    *Snapshot `json:"data"`
}
