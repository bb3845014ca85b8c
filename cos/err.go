// Package cos provides common low-level types and utilities shared across
// the bridge: error helpers, fingerprinting, and path hygiene.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package cos

import (
	"fmt"
	"sync"
)

type (
	// ErrNotFound reports that a named thing does not exist.
	ErrNotFound struct {
		what string
	}

	// ErrValidation reports a per-request validation failure with a cause.
	ErrValidation struct {
		field string
		cause string
	}

	// Errs accumulates up to maxErrs distinct errors, deduplicated by message.
	Errs struct {
		mu   sync.Mutex
		errs []error
	}
)

const maxErrs = 4

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{what: fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

func NewErrValidation(field, cause string) *ErrValidation {
	return &ErrValidation{field: field, cause: cause}
}

func (e *ErrValidation) Error() string { return fmt.Sprintf("%s: %s", e.field, e.cause) }

func IsErrValidation(err error) bool {
	_, ok := err.(*ErrValidation)
	return ok
}

// Add appends err unless an error with the same message was already added,
// and drops anything past maxErrs.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

// Error renders the first accumulated error, noting how many more there are.
func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return ""
	}
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	return fmt.Sprintf("%v (and %d more error(s))", e.errs[0], len(e.errs)-1)
}
