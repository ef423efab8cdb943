// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package core

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/internal/dylib"
)

// Error codes carried by session errors.
const (
	CodeLoadFailed      = dylib.CodeLoadFailed
	CodeMissingSymbols  = "MISSING_REQUIRED_SYMBOLS"
	CodeSessionActive   = bridge.CodeSessionActive
	CodeLoadGameFailed  = "LOAD_GAME_FAILED"
	CodePrecondition    = "PRECONDITION_FAILED"
	CodeUnsupported     = "UNSUPPORTED_OPERATION"
	CodeOperationFailed = "OPERATION_FAILED"
)

// Error kinds, matched with errors.Is.
var (
	ErrLoad         = errors.New("core load failed")
	ErrLoadGame     = errors.New("game load failed")
	ErrPrecondition = errors.New("operation not valid in current state")
	ErrUnsupported  = errors.New("operation not supported by core")
)

// kind joins an error kind with its cause so both match errors.Is.
func kind(k, cause error) error {
	if cause == nil {
		return k
	}
	return fmt.Errorf("%w: %w", k, cause)
}

func preconditionError(op string, have State, want ...State) error {
	return oops.In("core").Code(CodePrecondition).
		With("operation", op).With("state", have.String()).With("want", fmt.Sprint(want)).
		Wrap(ErrPrecondition)
}

// NewPreconditionError reports op attempted in state have. Callers that
// must refuse work before reaching the session use it to report the same
// error the session would.
func NewPreconditionError(op string, have State, want ...State) error {
	return preconditionError(op, have, want...)
}

func unsupportedError(op Op) error {
	return oops.In("core").Code(CodeUnsupported).
		With("operation", op.String()).
		Hint("check Supports before calling optional operations").
		Wrap(ErrUnsupported)
}
