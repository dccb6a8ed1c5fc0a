// Package apperr holds the sentinel errors shared across the relay.
package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnreadable           = errors.New("unreadable")
	ErrEmptyFile            = errors.New("empty file")
	ErrFrameTooLarge        = errors.New("frame too large")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrClosed               = errors.New("closed")
	ErrDisabled             = errors.New("disabled")
)
