// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package bridge

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/internal/managed"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

func TestInstall_SingleActiveBridge(t *testing.T) {
	first := New(nil, nil)
	tr, uninstall, err := Install(first)
	require.NoError(t, err)
	assert.NotZero(t, tr.VideoRefresh)
	assert.True(t, Installed())

	_, _, err = Install(New(nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	errutil.AssertErrorCode(t, err, CodeSessionActive)

	uninstall()
	uninstall()
	assert.False(t, Installed())

	_, again, err := Install(New(nil, nil))
	require.NoError(t, err)
	again()
}

func TestInstall_StaleUninstallKeepsNewBridge(t *testing.T) {
	_, stale, err := Install(New(nil, nil))
	require.NoError(t, err)
	stale()

	_, current, err := Install(New(nil, nil))
	require.NoError(t, err)
	defer current()

	stale()
	assert.True(t, Installed(), "an old uninstall func must not evict a newer bridge")
}

func TestDispatch_WithoutBridge(t *testing.T) {
	require.False(t, Installed())
	assert.Equal(t, uintptr(0), dispatchEnvironment(9, nil))
	assert.Equal(t, uintptr(0), dispatchInputState(0, 1, 0, 0))
	assert.Equal(t, uintptr(4), dispatchAudioSampleBatch(nil, 4))
	assert.NotPanics(t, func() {
		dispatchVideoRefresh(nil, 1, 1, 1)
		dispatchInputPoll()
		dispatchAudioSample(1, 2)
	})
}

func TestDispatch_RoutesToInstalledBridge(t *testing.T) {
	rec := &recorder{answer: func(_, _, _, id int) int { return -id }}
	_, uninstall, err := Install(New(managed.NewDirect(rec), nil))
	require.NoError(t, err)
	defer uninstall()

	got := dispatchInputState(0, 1, 0, 3)
	assert.Equal(t, int16(-3), int16(uint16(got)), "negative answers survive the register round trip")

	pixels := make([]byte, 4*2)
	dispatchVideoRefresh(unsafe.Pointer(&pixels[0]), 1, 2, 4)
	require.Len(t, rec.frames, 1)
	assert.Len(t, rec.frames[0].Data, 8)

	dispatchAudioSample(uintptr(0xffff), 1)
	assert.Equal(t, [][2]int16{{-1, 1}}, rec.samples)

	dispatchInputPoll()
	assert.Equal(t, 1, rec.polls)
}
