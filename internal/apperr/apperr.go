/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package apperr defines the error taxonomy shared by every package in the
// authorization and secret-management core. Callers at the request boundary
// switch on Kind to choose an HTTP-equivalent status; the core itself never
// makes that choice.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller's benefit. It is not a substitute
// for a specific sentinel error — callers that need to distinguish more
// finely should still use errors.Is against the wrapped cause.
type Kind int

const (
	// Unknown is the zero value; Wrap and New never produce it.
	Unknown Kind = iota
	// Authentication: credential invalid, token expired, token absent when required.
	Authentication
	// Authorization: service lacks realm access, policy evaluation denies.
	Authorization
	// NotFound: named entity (policy, session, token, tuple) absent.
	NotFound
	// Validation: input malformed.
	Validation
	// PolicyConflict: mutation of an immutable policy, or root combined with other policies.
	PolicyConflict
	// Encryption: AEAD encrypt/decrypt failure, missing DEK, corrupt wrapped key.
	Encryption
	// Storage: backend unavailable or returns a transport error.
	Storage
	// Database: persistence-layer error distinguishable from Storage.
	Database
	// Configuration: required env var missing, inconsistent config.
	Configuration
	// Internal: invariant violation.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "authentication"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case PolicyConflict:
		return "policy_conflict"
	case Encryption:
		return "encryption"
	case Storage:
		return "storage"
	case Database:
		return "database"
	case Configuration:
		return "configuration"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried through the core. It wraps an
// underlying cause (which may be nil) and a human-readable message.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the error's taxonomy kind, or Unknown if err is nil or not
// an *Error (nor wraps one).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Unknown
}

// New constructs an *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause. If cause is
// nil, Wrap returns nil so callers can write `return apperr.Wrap(Encryption, "...", err)`
// in a fallthrough position without a separate nil check.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, message: message, cause: cause}
}

// Is reports whether err carries the given Kind. Convenience over
// KindOf(err) == kind, mirroring the errors.Is calling convention callers expect.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
