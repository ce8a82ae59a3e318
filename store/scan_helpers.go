package store

import (
	"database/sql"
	"errors"
	"time"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const (
	timeLayout = "2006-01-02 15:04:05"
	dayLayout  = "2006-01-02"
)

// DayKey formats a time as the calendar-date key used to partition daily data.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// Today returns the device-local calendar date key.
func Today() string {
	return DayKey(time.Now())
}

// Now returns the current local time in the format the schema's
// datetime('now','localtime') defaults produce.
func Now() string {
	return time.Now().Format(timeLayout)
}

func scanTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeLayout, s, time.Local)
	return t
}
