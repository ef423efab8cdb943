// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewULID(t *testing.T) {
	id1 := NewULID()
	id2 := NewULID()

	assert.NotEmpty(t, id1.String())
	assert.NotEqual(t, id1, id2)
	assert.Less(t, id1.String(), id2.String(), "later loads sort after earlier ones")
}
