package entity

import "errors"

var (
	// ErrUpstreamTimeout means an adapter call ran past its attempt deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstream covers non-success statuses, transport failures and provider error envelopes.
	ErrUpstream = errors.New("upstream error")
	// ErrDecode means a response did not have the shape the adapter expects.
	ErrDecode = errors.New("decode error")
	// ErrNotFound means no tried source knows the requested entity.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")

	ErrUnsupportedNetwork   = errors.New("unsupported network")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrAllSourcesFailed     = errors.New("all sources failed")
)
