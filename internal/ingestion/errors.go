package ingestion

import "errors"

// ErrUnavailable indicates the external processor failed its health check.
var ErrUnavailable = errors.New("ingestion processor unavailable")
