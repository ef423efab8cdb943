// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package errutil

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err carries the given oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorKind asserts that err wraps the sentinel kind and carries code.
// Session errors are matched this way: the kind says what failed and the
// code says why.
func AssertErrorKind(t *testing.T, err, kind error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %q in chain of %v", kind, err)
	AssertErrorCode(t, err, code)
}

// AssertErrorContext asserts that err carries key in its oops context with
// the given value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "context of %v", err)
	assert.Equal(t, value, ctx[key])
}
