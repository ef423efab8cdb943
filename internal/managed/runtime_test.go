// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package managed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirect_AttachRelease(t *testing.T) {
	target := &struct{ name string }{name: "pad"}
	rt := NewDirect(target)

	env, err := rt.Attach()
	require.NoError(t, err)
	assert.Same(t, target, env.Target())
	assert.Equal(t, int64(1), rt.Attached())

	env.Release()
	env.Release()
	assert.Equal(t, int64(0), rt.Attached(), "double release must not underflow")
}

func TestDirect_NilTarget(t *testing.T) {
	rt := NewDirect(nil)
	env, err := rt.Attach()
	require.NoError(t, err)
	defer env.Release()
	assert.Nil(t, env.Target())
}
