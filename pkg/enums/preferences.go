package enums

import "fmt"

// Theme is the device-level color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var validThemes = []Theme{ThemeLight, ThemeDark}

func (t Theme) String() string {
	return string(t)
}

func (t Theme) IsValid() bool {
	for _, candidate := range validThemes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTheme converts a raw string into a Theme.
func ParseTheme(value string) (Theme, error) {
	for _, candidate := range validThemes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid theme %q", value)
}

// Units selects the measurement system used for quantities.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

var validUnits = []Units{UnitsMetric, UnitsImperial}

func (u Units) String() string {
	return string(u)
}

func (u Units) IsValid() bool {
	for _, candidate := range validUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnits converts a raw string into Units.
func ParseUnits(value string) (Units, error) {
	for _, candidate := range validUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid units %q", value)
}
