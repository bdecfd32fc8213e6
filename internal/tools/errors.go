// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"errors"
	"fmt"
)

// Kind classifies failures. Only KindRuntime is retried by the orchestrator.
type Kind int

const (
	KindRuntime Kind = iota
	KindValidation
	KindSafety
	KindDependency
	KindFramework
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSafety:
		return "safety"
	case KindDependency:
		return "dependency"
	case KindFramework:
		return "framework"
	default:
		return "runtime"
	}
}

var (
	// ErrToolNotFound is returned for ids the registry has never seen.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolUnavailable is wrapped when a registered tool failed to load.
	ErrToolUnavailable = errors.New("tool failed to load")
)

// Error is a classified failure with an optional remediation hint.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation reports bad input. Never retried.
func NewValidation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewSafety reports a tripped safety limit. Never retried.
func NewSafety(format string, args ...any) error {
	return &Error{Kind: KindSafety, Message: fmt.Sprintf(format, args...)}
}

// NewDependency reports a missing optional capability with an install hint.
func NewDependency(what, hint string) error {
	return &Error{Kind: KindDependency, Message: what, Hint: hint}
}

// Runtime wraps an I/O or network failure. Eligible for retry.
func Runtime(msg string, err error) error {
	return &Error{Kind: KindRuntime, Message: msg, Err: err}
}

// Framework wraps a failure of the core itself (registry, serialization).
func Framework(msg string, err error) error {
	return &Error{Kind: KindFramework, Message: msg, Err: err}
}

// KindOf classifies err. Unclassified errors count as runtime failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var ves ValidationErrors
	if errors.As(err, &ves) {
		return KindValidation
	}
	if errors.Is(err, ErrToolNotFound) || errors.Is(err, ErrToolUnavailable) {
		return KindFramework
	}
	return KindRuntime
}

// Retryable reports whether the orchestrator may try again after err.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindRuntime
}
