package domain

import "errors"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidInput is returned for structurally invalid arguments before any I/O.
var ErrInvalidInput = errors.New("invalid input")

// ErrUpstreamUnavailable covers connection errors, timeouts and non-2xx
// statuses from the inference server.
var ErrUpstreamUnavailable = errors.New("inference server unavailable")

// ErrDuplicateFeedback is returned when a concurrent insert already claimed
// the same unique_id.
var ErrDuplicateFeedback = errors.New("feedback already exists for this response")

// ErrFeedbackUpdateFailed is returned when an update matched no document.
var ErrFeedbackUpdateFailed = errors.New("feedback update modified nothing")
