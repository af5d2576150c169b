// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a backend failure. The router treats kinds differently:
// timeouts and resource exhaustion are retryable on another backend,
// cancellation is not a backend fault at all.
type Kind int

const (
	// KindBackend is a failure reported by the backend itself (bad
	// response, refused request, server error).
	KindBackend Kind = iota

	// KindTimeout means the call exceeded its deadline.
	KindTimeout

	// KindResourceExhausted means the backend is up but saturated
	// (rate limit, queue full, out of memory).
	KindResourceExhausted

	// KindNetwork means the backend was unreachable.
	KindNetwork

	// KindCancelled means the caller abandoned the request. Cancellation
	// still counts against the backend's breaker: an operator hitting
	// cancel because a backend hangs is signal, not noise.
	KindCancelled
)

// String returns the short name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindTimeout:
		return "timeout"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindNetwork:
		return "network"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s: %s", e.Backend, e.Kind)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error chain. Unclassified
// errors report KindBackend.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindBackend
}

// IsRetryable reports whether another backend might succeed where this
// one failed. Cancellation is never retryable: the caller is gone.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindResourceExhausted, KindNetwork, KindBackend:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether the caller abandoned the request.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
