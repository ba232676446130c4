// internal/model/timezone.go
package model

import (
	"strings"
	"time"
)

const DefaultTimezone = "UTC"

// TimezoneResolution is the outcome of resolving a stored timezone name.
// Location is always usable; Fallback is set when it is the UTC default
// standing in for a missing or unknown name, with Err holding the cause.
type TimezoneResolution struct {
	Location *time.Location
	Fallback bool
	Err      error
}

func ResolveTimezone(name string) TimezoneResolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return TimezoneResolution{Location: time.UTC}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return TimezoneResolution{Location: time.UTC, Fallback: true, Err: err}
	}
	return TimezoneResolution{Location: loc}
}
