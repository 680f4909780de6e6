package siteconfig

import "errors"

var (
	// ErrUnknownFormat is returned when a document is encoded in an unsupported format.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrInvalidBaseURL is returned when the base URL is neither a path nor an absolute URL.
	ErrInvalidBaseURL = errors.New("base URL must start with / or be an absolute URL")
)
