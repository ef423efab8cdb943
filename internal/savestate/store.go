// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package savestate stores save state slots and battery saves on disk.
package savestate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/xdg"
)

// Slots is the number of numbered save slots per game.
const Slots = 10

// ResumeSlot selects the resume state written on exit.
const ResumeSlot = -1

// Error codes.
const (
	CodeBadSlot   = "BAD_SLOT"
	CodeNoState   = "NO_STATE"
	CodeIOFailure = "STATE_IO_FAILED"
)

// ErrNoState is returned when a slot has never been written.
var ErrNoState = errors.New("no save state in slot")

// Store keeps files under Dir/<game>/.
type Store struct {
	dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// GameKey turns a ROM name into a directory name: the base name without its
// extension, with path separators and leading dots removed.
func GameKey(romName string) string {
	base := filepath.Base(romName)
	key := strings.TrimSuffix(base, filepath.Ext(base))
	key = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, key)
	key = strings.TrimLeft(key, ".")
	if key == "" {
		return "unknown"
	}
	return key
}

func slotFile(slot int) (string, error) {
	if slot == ResumeSlot {
		return "resume.state", nil
	}
	if slot < 0 || slot >= Slots {
		return "", oops.Code(CodeBadSlot).With("slot", slot).
			Errorf("slot must be between 0 and %d", Slots-1)
	}
	return fmt.Sprintf("state-%d.state", slot), nil
}

// Path returns the file backing a slot.
func (s *Store) Path(game string, slot int) (string, error) {
	name, err := slotFile(slot)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, GameKey(game), name), nil
}

// Save writes a slot, replacing any earlier state.
func (s *Store) Save(game string, slot int, data []byte) error {
	p, err := s.Path(game, slot)
	if err != nil {
		return err
	}
	return writeFile(p, data)
}

// Load reads a slot. A slot never written returns ErrNoState.
func (s *Store) Load(game string, slot int) ([]byte, error) {
	p, err := s.Path(game, slot)
	if err != nil {
		return nil, err
	}
	return readFile(p)
}

// Exists reports which numbered slots hold a state.
func (s *Store) Exists(game string) [Slots]bool {
	var out [Slots]bool
	for i := range Slots {
		p, _ := s.Path(game, i)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			out[i] = true
		}
	}
	return out
}

// Delete removes a slot. Deleting an empty slot is not an error.
func (s *Store) Delete(game string, slot int) error {
	p, err := s.Path(game, slot)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Code(CodeIOFailure).With("path", p).Wrap(err)
	}
	return nil
}

// SaveSession serializes a running session into a slot.
func (s *Store) SaveSession(sess *core.Session, game string, slot int) error {
	if _, err := s.Path(game, slot); err != nil {
		return err
	}
	data, err := sess.Serialize()
	if err != nil {
		return err
	}
	return s.Save(game, slot, data)
}

// LoadSession restores a slot into a running session.
func (s *Store) LoadSession(sess *core.Session, game string, slot int) error {
	data, err := s.Load(game, slot)
	if err != nil {
		return err
	}
	return sess.Unserialize(data)
}

func (s *Store) batteryPath(game string) string {
	return filepath.Join(s.dir, GameKey(game), "battery.srm")
}

// SaveBattery writes the battery-backed RAM of a game.
func (s *Store) SaveBattery(game string, data []byte) error {
	return writeFile(s.batteryPath(game), data)
}

// LoadBattery reads the battery-backed RAM of a game. A game that never
// saved returns ErrNoState.
func (s *Store) LoadBattery(game string) ([]byte, error) {
	return readFile(s.batteryPath(game))
}

// writeFile writes through a temporary file so a crash never leaves a torn
// state behind.
func writeFile(p string, data []byte) error {
	if err := xdg.EnsureDir(filepath.Dir(p)); err != nil {
		return err
	}
	tmp := p + "." + core.NewULID().String() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return oops.Code(CodeIOFailure).With("path", p).Wrap(err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return oops.Code(CodeIOFailure).With("path", p).Wrap(err)
	}
	return nil
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p) //nolint:gosec // path is built from the store root
	if errors.Is(err, os.ErrNotExist) {
		return nil, oops.Code(CodeNoState).With("path", p).Wrap(ErrNoState)
	}
	if err != nil {
		return nil, oops.Code(CodeIOFailure).With("path", p).Wrap(err)
	}
	return data, nil
}
