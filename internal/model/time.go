package model

import (
	"fmt"
	"time"
)

// InstantLayout is the only layout used for recurrence identities and range
// bounds. Values are always UTC and zero padded, so lexical order equals
// chronological order.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// MasterKey is the recurrence key of master and single rows.
const MasterKey = "master"

// FormatInstant renders t in the canonical UTC layout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// ParseInstant accepts any RFC 3339 timestamp and returns it in UTC.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instant %q: %w", s, err)
	}
	return t.UTC(), nil
}

// RecurrenceKey returns the identity key of an occurrence starting at t.
func RecurrenceKey(t time.Time) string {
	return FormatInstant(t)
}
