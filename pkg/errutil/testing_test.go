// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/pkg/errutil"
)

var errKind = errors.New("game rejected")

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("LOAD_GAME_FAILED").Errorf("test error")
	errutil.AssertErrorCode(t, err, "LOAD_GAME_FAILED")
}

func TestAssertErrorKind_KindAndCode(t *testing.T) {
	err := oops.In("core").Code("LOAD_GAME_FAILED").With("path", "smb.nes").Wrap(errKind)
	errutil.AssertErrorKind(t, err, errKind, "LOAD_GAME_FAILED")

	joined := oops.Code("LOAD_GAME_FAILED").Wrap(fmt.Errorf("%w: %w", errKind, errors.New("cause")))
	errutil.AssertErrorKind(t, joined, errKind, "LOAD_GAME_FAILED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("core", "nestopia").Errorf("test error")
	errutil.AssertErrorContext(t, err, "core", "nestopia")
}
