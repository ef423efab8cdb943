// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package frontend is the host-facing surface over a core session. Its
// methods report success as a bool and log failures, so callers that only
// drive a core never handle libretro errors themselves.
package frontend

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/retro"
	"github.com/retrobridge/retrobridge/internal/romloader"
	"github.com/retrobridge/retrobridge/internal/savestate"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

// Frontend serializes lifecycle calls on one session.
type Frontend struct {
	mu      sync.Mutex
	session *core.Session
	logger  *slog.Logger
	store   *savestate.Store
	maxROM  int64

	game    string
	rom     []byte
	lastErr error
}

// Option configures a Frontend.
type Option func(*Frontend)

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(f *Frontend) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithStore enables slot saves and battery persistence.
func WithStore(s *savestate.Store) Option {
	return func(f *Frontend) { f.store = s }
}

// WithMaxROMSize caps ROMs read into memory.
func WithMaxROMSize(n int64) Option {
	return func(f *Frontend) { f.maxROM = n }
}

// New wraps session.
func New(session *core.Session, opts ...Option) *Frontend {
	f := &Frontend{
		session: session,
		logger:  slog.Default(),
		maxROM:  romloader.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Session returns the wrapped session.
func (f *Frontend) Session() *core.Session { return f.session }

// Err returns the error behind the last failed call, or nil.
func (f *Frontend) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Game returns the name of the loaded game, or "".
func (f *Frontend) Game() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.game
}

// fail records and logs err. Callers hold f.mu.
func (f *Frontend) fail(msg string, err error) bool {
	f.lastErr = err
	errutil.LogError(f.logger, msg, err)
	return false
}

func (f *Frontend) ok() bool {
	f.lastErr = nil
	return true
}

// LoadCore loads the core at path.
func (f *Frontend) LoadCore(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.session.Load(context.Background(), path); err != nil {
		return f.fail("load core failed", err)
	}
	return f.ok()
}

// UnloadCore unloads the game and the core. Battery RAM is written first
// when a store is configured.
func (f *Frontend) UnloadCore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushBattery()
	f.session.Unload(context.Background())
	f.game = ""
	f.rom = nil
}

// LoadGame loads content from path. Cores that need a full path get only
// the path; all others get the ROM bytes, unpacked from an archive unless
// the core blocks extraction.
func (f *Frontend) LoadGame(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if st := f.session.State(); st != core.StateLoaded {
		return f.fail("load game failed", core.NewPreconditionError("load_game", st, core.StateLoaded))
	}
	game, name, err := f.prepare(path)
	if err != nil {
		return f.fail("read game failed", err)
	}
	if err := f.session.LoadGame(context.Background(), game); err != nil {
		return f.fail("load game failed", err)
	}
	// Some cores keep pointing at the buffer until the game unloads.
	f.rom = game.Data
	f.game = name
	f.restoreBattery()
	return f.ok()
}

func (f *Frontend) prepare(path string) (core.Game, string, error) {
	info := f.session.SystemInfo()
	if info.NeedFullpath {
		return core.Game{Path: path}, path, nil
	}
	if info.BlockExtract {
		data, err := os.ReadFile(path) //nolint:gosec // content path is chosen by the operator
		if err != nil {
			return core.Game{}, "", oops.In("frontend").With("path", path).Wrap(err)
		}
		return core.Game{Path: path, Data: data}, path, nil
	}
	rom, err := romloader.New(info.ValidExtensions, f.maxROM).Load(path)
	if err != nil {
		return core.Game{}, "", err
	}
	return core.Game{Path: path, Data: rom.Data}, rom.Name, nil
}

// RunFrame runs one frame. Calling it without a game is logged and ignored.
func (f *Frontend) RunFrame() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.session.RunFrame(context.Background()); err != nil {
		return f.fail("run frame failed", err)
	}
	return f.ok()
}

// Reset soft-resets the running game.
func (f *Frontend) Reset() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.session.Reset(context.Background()); err != nil {
		return f.fail("reset failed", err)
	}
	return f.ok()
}

// SaveState captures the running game.
func (f *Frontend) SaveState() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.session.Serialize()
	if err != nil {
		return nil, f.fail("save state failed", err)
	}
	return data, f.ok()
}

// LoadState restores a state captured by SaveState.
func (f *Frontend) LoadState(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.session.Unserialize(data); err != nil {
		return f.fail("load state failed", err)
	}
	return f.ok()
}

// SaveSlot writes the running game into a numbered slot of the store.
func (f *Frontend) SaveSlot(slot int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		return f.fail("save slot failed", oops.In("frontend").Errorf("no save state store configured"))
	}
	if err := f.store.SaveSession(f.session, f.game, slot); err != nil {
		return f.fail("save slot failed", err)
	}
	return f.ok()
}

// LoadSlot restores a numbered slot of the store.
func (f *Frontend) LoadSlot(slot int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		return f.fail("load slot failed", oops.In("frontend").Errorf("no save state store configured"))
	}
	if err := f.store.LoadSession(f.session, f.game, slot); err != nil {
		return f.fail("load slot failed", err)
	}
	return f.ok()
}

// SystemInfo returns the loaded core's description. ok is false while no
// core is loaded.
func (f *Frontend) SystemInfo() (info core.SystemInfo, ok bool) {
	if f.session.State() == core.StateUnloaded {
		return core.SystemInfo{}, false
	}
	return f.session.SystemInfo(), true
}

// restoreBattery copies saved battery RAM into the core. Callers hold f.mu.
func (f *Frontend) restoreBattery() {
	if f.store == nil || !f.session.Supports(core.OpGetMemoryData) {
		return
	}
	saved, err := f.store.LoadBattery(f.game)
	if err != nil {
		return
	}
	ram, err := f.session.MemoryData(retro.MemorySaveRAM)
	if err != nil || len(ram) == 0 {
		return
	}
	if n := copy(ram, saved); n != len(saved) {
		f.logger.Warn("battery save larger than core save RAM", "game", f.game, "saved", len(saved), "ram", len(ram))
	}
}

// flushBattery writes the core's battery RAM to the store. Callers hold f.mu.
func (f *Frontend) flushBattery() {
	if f.store == nil || f.game == "" || f.session.State() != core.StateGameLoaded ||
		!f.session.Supports(core.OpGetMemoryData) {
		return
	}
	ram, err := f.session.MemoryData(retro.MemorySaveRAM)
	if err != nil || len(ram) == 0 {
		return
	}
	if err := f.store.SaveBattery(f.game, ram); err != nil {
		errutil.LogError(f.logger, "write battery save failed", err)
	}
}
