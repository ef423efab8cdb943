// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package retro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCStringRoundTrip(t *testing.T) {
	b, err := CString("/var/lib/retrobridge/system")
	require.NoError(t, err)
	assert.Equal(t, byte(0), b[len(b)-1])
	assert.Equal(t, "/var/lib/retrobridge/system", GoString(&b[0]))
}

func TestCStringRejectsEmbeddedNUL(t *testing.T) {
	_, err := CString("a\x00b")
	assert.Error(t, err)
}

func TestGoStringNil(t *testing.T) {
	assert.Equal(t, "", GoString(nil))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "get_system_directory", EnvName(EnvGetSystemDirectory))
	assert.Equal(t, "get_save_directory", EnvName(EnvGetSaveDirectory))
	assert.Equal(t, "get_log_interface", EnvName(EnvGetLogInterface))
	assert.Equal(t, "", EnvName(0xdead))
}

func TestPixelFormat(t *testing.T) {
	assert.True(t, PixelRGB565.Valid())
	assert.False(t, PixelFormat(7).Valid())
	assert.Equal(t, "XRGB8888", PixelXRGB8888.String())
	assert.Equal(t, "unknown", PixelFormat(7).String())
}
