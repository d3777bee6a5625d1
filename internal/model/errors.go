package model

import (
	"errors"
	"fmt"
)

var ErrNoRecord = errors.New("no record")
var ErrAlreadyExists = errors.New("entity already exists")

var (
	ErrInvalidWindow       = errors.New("invalid time window")
	ErrInvalidCalendar     = errors.New("invalid calendar")
	ErrNoCredential        = errors.New("no stored credential")
	ErrRefreshFailed       = errors.New("access token refresh failed")
	ErrCursorInvalid       = errors.New("sync cursor invalid")
	ErrMalformedRecurrence = errors.New("malformed recurrence")
	ErrSyncInProgress      = errors.New("sync already in progress")
)

// UpstreamHTTPError is a non-2xx response from a calendar source.
type UpstreamHTTPError struct {
	Status int
	Reason string
}

func (e *UpstreamHTTPError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("upstream responded with status %d", e.Status)
	}
	return fmt.Sprintf("upstream responded with status %d: %s", e.Status, e.Reason)
}
