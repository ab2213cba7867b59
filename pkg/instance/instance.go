package instance

import (
	"os"

	"github.com/angelmondragon/buildmatch-client/pkg/env"
	"github.com/google/uuid"
)

const deviceIDEnv = "BUILDMATCH_DEVICE_ID"

// GetID returns the device identifier sent with API requests.
// Falls back to the hostname, then to a random id for the process lifetime.
func GetID() string {
	if id := env.Get(deviceIDEnv, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return processID
}

var processID = "device-" + uuid.NewString()
