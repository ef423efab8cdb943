// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package core

import (
	"unsafe"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// requireGame checks the session holds a game and the core exports ops.
// Callers hold s.mu.
func (s *Session) requireGame(name string, ops ...Op) error {
	if s.state != StateGameLoaded {
		return preconditionError(name, s.state, StateGameLoaded)
	}
	for _, op := range ops {
		if !s.eps.Has(op) {
			return unsupportedError(op)
		}
	}
	return nil
}

// SerializeSize returns the number of bytes a save state needs.
func (s *Session) SerializeSize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("serialize_size", OpSerializeSize); err != nil {
		return 0, err
	}
	return int(s.eps.SerializeSize()), nil
}

// Serialize captures the core state as an opaque byte buffer.
func (s *Session) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("serialize", OpSerializeSize, OpSerialize); err != nil {
		return nil, err
	}

	size := s.eps.SerializeSize()
	errb := oops.In("core").Code(CodeOperationFailed).With("operation", "serialize").With("size", size)
	if size == 0 {
		return nil, errb.Errorf("core reports an empty save state")
	}
	buf := make([]byte, size)
	if !s.eps.Serialize(unsafe.Pointer(&buf[0]), size) {
		return nil, errb.Errorf("core failed to serialize")
	}
	return buf, nil
}

// Unserialize restores a state captured by Serialize.
func (s *Session) Unserialize(state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("unserialize", OpUnserialize); err != nil {
		return err
	}

	errb := oops.In("core").Code(CodeOperationFailed).With("operation", "unserialize").With("size", len(state))
	if len(state) == 0 {
		return errb.Errorf("save state is empty")
	}
	if !s.eps.Unserialize(unsafe.Pointer(&state[0]), uintptr(len(state))) {
		return errb.Hint("the state may belong to another core or game").Errorf("core rejected save state")
	}
	return nil
}

// CheatReset clears every applied cheat.
func (s *Session) CheatReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("cheat_reset", OpCheatReset); err != nil {
		return err
	}
	s.eps.CheatReset()
	return nil
}

// CheatSet applies or removes the cheat at index.
func (s *Session) CheatSet(index uint32, enabled bool, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("cheat_set", OpCheatSet); err != nil {
		return err
	}
	c, err := retro.CString(code)
	if err != nil {
		return oops.In("core").Code(CodeOperationFailed).With("operation", "cheat_set").Wrap(err)
	}
	s.eps.CheatSet(index, enabled, &c[0])
	return nil
}

// Region returns the video standard of the running game.
func (s *Session) Region() (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("region", OpGetRegion); err != nil {
		return 0, err
	}
	return Region(s.eps.GetRegion()), nil
}

// MemoryData returns a view of a core memory region such as
// retro.MemorySaveRAM. The view aliases core memory and stays valid until
// the game is unloaded. A region the core does not expose is empty.
func (s *Session) MemoryData(id uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("memory_data", OpGetMemoryData, OpGetMemorySize); err != nil {
		return nil, err
	}
	ptr := s.eps.GetMemoryData(id)
	size := s.eps.GetMemorySize(id)
	if ptr == nil || size == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

// MemorySize returns the size of a core memory region.
func (s *Session) MemorySize(id uint32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireGame("memory_size", OpGetMemorySize); err != nil {
		return 0, err
	}
	return int(s.eps.GetMemorySize(id)), nil
}
