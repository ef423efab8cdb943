// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package savestate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/core/coretest"
	"github.com/retrobridge/retrobridge/internal/savestate"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

func TestGameKey(t *testing.T) {
	tests := map[string]string{
		"/roms/Super Mario Bros.nes": "Super Mario Bros",
		"game.tar.gz":                "game.tar",
		".hidden":                    "unknown",
		"..":                         "unknown",
		"plain":                      "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, savestate.GameKey(in), in)
	}
}

func TestStore_SaveAndLoadSlots(t *testing.T) {
	dir := t.TempDir()
	s := savestate.New(dir)

	require.NoError(t, s.Save("zelda.nes", 3, []byte("three")))
	require.NoError(t, s.Save("zelda.nes", savestate.ResumeSlot, []byte("resume")))

	got, err := s.Load("zelda.nes", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)

	got, err = s.Load("zelda.sfc", savestate.ResumeSlot)
	require.NoError(t, err, "games are keyed by name without extension")
	assert.Equal(t, []byte("resume"), got)

	assert.FileExists(t, filepath.Join(dir, "zelda", "state-3.state"))
	assert.FileExists(t, filepath.Join(dir, "zelda", "resume.state"))

	exists := s.Exists("zelda")
	assert.True(t, exists[3])
	assert.False(t, exists[0])

	matches, err := filepath.Glob(filepath.Join(dir, "zelda", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_OverwriteSlot(t *testing.T) {
	s := savestate.New(t.TempDir())
	require.NoError(t, s.Save("g", 0, []byte("old")))
	require.NoError(t, s.Save("g", 0, []byte("new")))

	got, err := s.Load("g", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestStore_EmptySlot(t *testing.T) {
	s := savestate.New(t.TempDir())
	_, err := s.Load("g", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, savestate.ErrNoState))
	errutil.AssertErrorCode(t, err, savestate.CodeNoState)

	require.NoError(t, s.Delete("g", 5))
}

func TestStore_BadSlot(t *testing.T) {
	s := savestate.New(t.TempDir())
	for _, slot := range []int{-2, savestate.Slots, 99} {
		err := s.Save("g", slot, []byte("x"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, savestate.CodeBadSlot)
		_, err = s.Load("g", slot)
		require.Error(t, err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := savestate.New(t.TempDir())
	require.NoError(t, s.Save("g", 1, []byte("x")))
	require.NoError(t, s.Delete("g", 1))
	assert.False(t, s.Exists("g")[1])
}

func TestStore_Battery(t *testing.T) {
	s := savestate.New(t.TempDir())
	_, err := s.LoadBattery("metroid.nes")
	assert.True(t, errors.Is(err, savestate.ErrNoState))

	require.NoError(t, s.SaveBattery("metroid.nes", []byte{1, 2, 3}))
	got, err := s.LoadBattery("metroid.nes")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestStore_WriteFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0o600))

	s := savestate.New(root)
	require.Error(t, s.Save("g", 0, []byte("x")))
}

func TestStore_SessionRoundTrip(t *testing.T) {
	fake := coretest.New()
	sess := core.NewSession(fake.Options()...)
	ctx := context.Background()
	require.NoError(t, sess.Load(ctx, "fake.so"))
	defer sess.Unload(ctx)

	s := savestate.New(t.TempDir())
	err := s.SaveSession(sess, "game", 0)
	require.Error(t, err, "no game loaded yet")
	assert.ErrorIs(t, err, core.ErrPrecondition)

	require.NoError(t, sess.LoadGame(ctx, core.Game{Path: "/roms/game.bin", Data: []byte{1}}))
	require.NoError(t, s.SaveSession(sess, "game", 0))
	require.NoError(t, s.LoadSession(sess, "game", 0))

	err = s.LoadSession(sess, "game", 1)
	assert.True(t, errors.Is(err, savestate.ErrNoState))

	require.NoError(t, s.Save("game", 2, []byte("garbage")))
	err = s.LoadSession(sess, "game", 2)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, core.CodeOperationFailed)
}
