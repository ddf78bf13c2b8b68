// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package kerr collects the sentinel errors shared across kitsugi's
// components, so callers can branch on failure kind with errors.Is/errors.As
// instead of matching error strings.
package kerr

import "errors"

var (
	// ErrNotFound is returned when a named reconstructed document has no
	// match in the store.
	ErrNotFound = errors.New("kitsugi: not found")

	// ErrParse is returned when a source file could not be decoded as JSON
	// while re-hashing it for a coverage report.
	ErrParse = errors.New("kitsugi: parse error")

	// ErrQuery is returned when a Repository request is malformed or the
	// backend rejects it (including an invalid FTS5 search expression).
	ErrQuery = errors.New("kitsugi: query error")

	// ErrStore is returned when a durable write to the backend fails.
	ErrStore = errors.New("kitsugi: store error")

	// ErrReadOnly is returned when a mutating request is issued against a
	// Repository opened in read-only mode.
	ErrReadOnly = errors.New("kitsugi: store is read-only")
)
