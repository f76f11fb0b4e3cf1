/*
Copyright 2025 Jordi Gil.

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

// Package errors defines the structured error taxonomy shared by every
// pipeline component. Executors classify failures once, at the component
// boundary, into one of the kinds below; nothing upstream re-classifies them.
package errors

import (
	"fmt"
	"net/http"

	goerrors "github.com/go-faster/errors"
)

// Kind is one of the error taxonomy entries from the orchestration design.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuth          Kind = "auth"
	KindTransient     Kind = "transient"
	KindPartial       Kind = "partial_failure"
	KindCancelled     Kind = "cancelled"
	KindCatastrophic  Kind = "catastrophic"
)

var statusCodes = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindAuth:         http.StatusUnauthorized,
	KindTransient:    http.StatusServiceUnavailable,
	KindPartial:      http.StatusOK,
	KindCancelled:    http.StatusConflict,
	KindCatastrophic: http.StatusInternalServerError,
}

// retryableKinds are classified retryable by default; callers may still
// override per stage/node configuration (e.g. timeout retryability).
var retryableKinds = map[Kind]bool{
	KindTransient: true,
}

// AppError is the single error type every component returns across package
// boundaries. Equality/comparison goes through Type, not Go's error identity.
type AppError struct {
	Type       Kind
	Message    string
	Details    string
	Cause      error
	Retryable  bool
	StatusCode int
}

func New(kind Kind, message string) *AppError {
	return &AppError{
		Type:       kind,
		Message:    message,
		Retryable:  retryableKinds[kind],
		StatusCode: statusCodes[kind],
	}
}

func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(cause error, kind Kind, message string) *AppError {
	err := New(kind, message)
	err.Cause = goerrors.Wrap(cause, message)
	return err
}

func Wrapf(cause error, kind Kind, format string, args ...interface{}) *AppError {
	return Wrap(cause, kind, fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails mutates and returns e, matching the teacher's in-place builder.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithRetryable overrides the default retryability classification (used for
// timeout errors, whose retryability is stage-configurable).
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err (any error, not just *AppError) should be
// retried by the orchestrator's backoff policy.
func IsRetryable(err error) bool {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// KindOf extracts the taxonomy kind from err, defaulting to Catastrophic for
// errors that never passed through classification.
func KindOf(err error) Kind {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Type
	}
	return KindCatastrophic
}
