// internal/model/schedule.go
package model

import "time"

// NextRun returns the run after prev. The cadence is anchored on the
// previous slot so a late scheduler never shifts it; now is only used when
// the campaign has never been scheduled.
func NextRun(prev RunSlot, unit FrequencyUnit, interval int, now time.Time) time.Time {
	base := prev.Or(now)
	if interval < 1 {
		interval = 1
	}

	switch unit {
	case FrequencyDay:
		return base.AddDate(0, 0, interval)
	case FrequencyWeek:
		return base.AddDate(0, 0, 7*interval)
	case FrequencyMonth:
		return addMonthsClamped(base, interval)
	}
	return base
}

// addMonthsClamped keeps the day of month but clamps it to the length of
// the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// ScheduledFor computes a recipient's send slot for a campaign run: the run
// time seen in the recipient's zone, moved back leadDays calendar days, with
// the local clock set to preferredHour:00, expressed in UTC.
func ScheduledFor(runAt time.Time, loc *time.Location, leadDays, preferredHour int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := runAt.In(loc)
	y, m, d := local.Date()
	slot := time.Date(y, m, d-leadDays, preferredHour, 0, 0, 0, loc)
	return slot.UTC()
}
