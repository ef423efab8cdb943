// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package environ answers the environment queries a libretro core issues
// through retro_environment_t.
//
// Commands the handler does not recognize, or that the configured policy
// does not allow, return false and leave the payload untouched.
package environ

import (
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// Config holds the host answers to environment queries.
type Config struct {
	// SystemDir is where cores look for BIOS and other system files.
	SystemDir string
	// SaveDir is where cores write battery saves.
	SaveDir string
	// AssetsDir is returned for core assets; SystemDir is used when empty.
	AssetsDir string
	// Allow lists command name patterns the host answers. Empty allows all.
	Allow []string
	// Variables overrides core option values by key.
	Variables map[string]string
}

// Handler answers environment commands for one core session.
type Handler struct {
	logger *slog.Logger
	policy *Policy

	mu          sync.Mutex
	pinner      runtime.Pinner
	systemDir   []byte
	saveDir     []byte
	assetsDir   []byte
	vars        *variableSet
	pixelFormat retro.PixelFormat
	geometry    retro.GameGeometry
	hasGeometry bool
	noGame      bool
	closed      bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger that receives core log output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// New validates cfg and returns a handler. Directory strings are pinned
// until Close because cores keep the pointers they are given.
func New(cfg Config, opts ...Option) (*Handler, error) {
	policy, err := NewPolicy(cfg.Allow)
	if err != nil {
		return nil, oops.In("environ").Code("BAD_CONFIG").Wrapf(err, "compile command policy")
	}

	h := &Handler{
		logger:      slog.Default(),
		policy:      policy,
		vars:        newVariableSet(cfg.Variables),
		pixelFormat: retro.Pixel0RGB1555,
	}
	for _, opt := range opts {
		opt(h)
	}

	assets := cfg.AssetsDir
	if assets == "" {
		assets = cfg.SystemDir
	}
	for _, d := range []struct {
		name string
		val  string
		dst  *[]byte
	}{
		{"system", cfg.SystemDir, &h.systemDir},
		{"save", cfg.SaveDir, &h.saveDir},
		{"assets", assets, &h.assetsDir},
	} {
		if d.val == "" {
			continue
		}
		b, err := retro.CString(d.val)
		if err != nil {
			h.pinner.Unpin()
			return nil, oops.In("environ").Code("BAD_CONFIG").With("dir", d.name).Wrapf(err, "directory path")
		}
		h.pinner.Pin(&b[0])
		*d.dst = b
	}
	return h, nil
}

// Close unpins every buffer handed to the core. Handle returns false after
// Close.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	logTarget.CompareAndSwap(h, nil)
	h.vars.release()
	h.pinner.Unpin()
}

// Handle answers one environment command.
func (h *Handler) Handle(cmd uint32, data unsafe.Pointer) bool {
	name := retro.EnvName(cmd)
	if !h.policy.Allowed(name) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	switch cmd {
	case retro.EnvGetSystemDirectory:
		return putDir(data, h.systemDir)
	case retro.EnvGetSaveDirectory:
		return putDir(data, h.saveDir)
	case retro.EnvGetCoreAssetsDirectory:
		return putDir(data, h.assetsDir)
	case retro.EnvGetLogInterface:
		return h.logInterface(data)
	case retro.EnvGetCanDupe:
		if data == nil {
			return false
		}
		*(*bool)(data) = true
		return true
	case retro.EnvSetPixelFormat:
		return h.setPixelFormat(data)
	case retro.EnvSetVariables:
		return h.setVariables(data)
	case retro.EnvGetVariable:
		return h.getVariable(data)
	case retro.EnvGetVariableUpdate:
		if data == nil {
			return false
		}
		*(*bool)(data) = h.vars.dirty
		h.vars.dirty = false
		return true
	case retro.EnvSetSupportNoGame:
		if data == nil {
			return false
		}
		h.noGame = *(*bool)(data)
		return true
	case retro.EnvSetGeometry:
		if data == nil {
			return false
		}
		h.geometry = *(*retro.GameGeometry)(data)
		h.hasGeometry = true
		return true
	default:
		return false
	}
}

func putDir(data unsafe.Pointer, dir []byte) bool {
	if data == nil || len(dir) == 0 {
		return false
	}
	*(**byte)(data) = &dir[0]
	return true
}

func (h *Handler) logInterface(data unsafe.Pointer) bool {
	if data == nil {
		return false
	}
	fn, err := coreLogCallback()
	if err != nil {
		h.logger.Warn("core log interface unavailable", "error", err)
		return false
	}
	logTarget.Store(h)
	(*retro.LogCallback)(data).Log = fn
	return true
}

func (h *Handler) setPixelFormat(data unsafe.Pointer) bool {
	if data == nil {
		return false
	}
	f := retro.PixelFormat(*(*uint32)(data))
	if !f.Valid() {
		h.logger.Warn("core requested unknown pixel format", "format", uint32(f))
		return false
	}
	h.pixelFormat = f
	return true
}

func (h *Handler) setVariables(data unsafe.Pointer) bool {
	if data == nil {
		return false
	}
	var vars []Variable
	for p := (*retro.Variable)(data); p.Key != nil; p = (*retro.Variable)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(retro.Variable{}))) {
		key := retro.GoString(p.Key)
		v, err := ParseDeclaration(key, retro.GoString(p.Value))
		if err != nil {
			h.logger.Warn("ignoring core option", "key", key, "error", err)
			continue
		}
		vars = append(vars, v)
	}
	h.vars.declare(vars)
	return true
}

func (h *Handler) getVariable(data unsafe.Pointer) bool {
	if data == nil {
		return false
	}
	v := (*retro.Variable)(data)
	e, ok := h.vars.get(retro.GoString(v.Key))
	if !ok {
		v.Value = nil
		return false
	}
	b, err := h.vars.cstring(e)
	if err != nil {
		v.Value = nil
		return false
	}
	v.Value = &b[0]
	return true
}

// SetVariable changes a core option. The core sees the change on its next
// GET_VARIABLE_UPDATE. Options the core has not declared yet are applied
// once it declares them.
func (h *Handler) SetVariable(key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vars.set(key, value)
}

// Variables returns the options the core declared, in declaration order.
func (h *Handler) Variables() []Variable {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vars.list()
}

// PixelFormat returns the framebuffer format the core selected.
func (h *Handler) PixelFormat() retro.PixelFormat {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pixelFormat
}

// Geometry returns the geometry last set by the core, if any.
func (h *Handler) Geometry() (retro.GameGeometry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.geometry, h.hasGeometry
}

// SupportsNoGame reports whether the core can run without content.
func (h *Handler) SupportsNoGame() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.noGame
}
