// internal/model/run_slot.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunSlot is a campaign's next_run_at. The zero value means the campaign
// has never been scheduled, which is distinct from "scheduled for now".
type RunSlot struct {
	at  time.Time
	set bool
}

func NeverRun() RunSlot { return RunSlot{} }

func ScheduledAt(t time.Time) RunSlot {
	return RunSlot{at: t.UTC(), set: true}
}

// Time returns the slot and whether one is set.
func (s RunSlot) Time() (time.Time, bool) { return s.at, s.set }

func (s RunSlot) IsSet() bool { return s.set }

// IsDue reports whether a campaign with this slot should run at now.
// A never-scheduled slot is always due.
func (s RunSlot) IsDue(now time.Time) bool {
	return !s.set || !s.at.After(now)
}

// Or returns the slot time, or fallback when unset.
func (s RunSlot) Or(fallback time.Time) time.Time {
	if s.set {
		return s.at
	}
	return fallback.UTC()
}

func (s *RunSlot) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = NeverRun()
	case time.Time:
		*s = ScheduledAt(v)
	default:
		return fmt.Errorf("cannot scan %T into RunSlot", src)
	}
	return nil
}

func (s RunSlot) Value() (driver.Value, error) {
	if !s.set {
		return nil, nil
	}
	return s.at, nil
}

func (s RunSlot) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.at)
}

func (s *RunSlot) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = NeverRun()
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*s = ScheduledAt(t)
	return nil
}
