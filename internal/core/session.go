// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package core drives the lifecycle of one libretro core.
//
// A Session moves between three states:
//
//	Unloaded --Load--> Loaded --LoadGame--> GameLoaded
//	    ^                 ^                     |
//	    |                 +-----UnloadGame------+
//	    +---------------Unload (any state)------+
//
// Operations called in a state that does not permit them fail with a
// PRECONDITION_FAILED error. Optional entry points the core does not export
// are capabilities, reported by Supports, never load failures.
package core

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/internal/dylib"
	"github.com/retrobridge/retrobridge/internal/managed"
	"github.com/retrobridge/retrobridge/internal/retro"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateUnloaded State = iota
	StateLoaded
	StateGameLoaded
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateGameLoaded:
		return "game_loaded"
	default:
		return "unknown"
	}
}

// Library is an opened core module.
type Library interface {
	Symbol(name string) (uintptr, bool)
	Close() error
}

// Opener opens the module at path.
type Opener func(path string) (Library, error)

// Binder stores a callable for the C function at addr into the function
// variable fptr points to.
type Binder func(fptr any, addr uintptr)

// Installer publishes a bridge as the callback receiver and returns the
// function pointers to register with the core plus an uninstall func.
type Installer func(b *bridge.Bridge) (bridge.Trampolines, func(), error)

// Metrics records session activity.
type Metrics interface {
	bridge.Observer
	CoreLoad(result string)
	FrameCompleted(d time.Duration)
	SetGameLoaded(loaded bool)
}

// DefaultOpener opens cores with the system dynamic loader.
func DefaultOpener(path string) (Library, error) {
	lib, err := dylib.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// Session owns one core from load to unload. Lifecycle methods are
// serialized; callbacks the core makes while a method runs are delivered
// through the bridge.
type Session struct {
	opener  Opener
	bind    Binder
	install Installer
	runtime managed.Runtime
	env     bridge.EnvironmentHandler
	logger  *slog.Logger
	log     *slog.Logger
	metrics Metrics
	tracer  trace.Tracer

	mu         sync.Mutex
	state      State
	lib        Library
	eps        *EntryPoints
	uninstall  func()
	id         ulid.ULID
	path       string
	info       SystemInfo
	av         AVInfo
	apiVersion uint32
}

// Option configures a Session.
type Option func(*Session)

// WithOpener replaces the module opener.
func WithOpener(o Opener) Option {
	return func(s *Session) { s.opener = o }
}

// WithBinder replaces the function binder.
func WithBinder(b Binder) Option {
	return func(s *Session) { s.bind = b }
}

// WithInstaller replaces the callback installer.
func WithInstaller(i Installer) Option {
	return func(s *Session) { s.install = i }
}

// WithRuntime sets the managed runtime that receives callbacks.
func WithRuntime(rt managed.Runtime) Option {
	return func(s *Session) { s.runtime = rt }
}

// WithEnvironment sets the environment query handler.
func WithEnvironment(h bridge.EnvironmentHandler) Option {
	return func(s *Session) { s.env = h }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession returns an unloaded session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		opener:  DefaultOpener,
		bind:    purego.RegisterFunc,
		install: bridge.Install,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/retrobridge/retrobridge/internal/core"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.logger
	if s.opener == nil || s.bind == nil || s.install == nil {
		panic("core.NewSession: opener, binder and installer cannot be nil")
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID identifies the current load of a core. It is zero while unloaded.
func (s *Session) ID() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Path returns the path the current core was loaded from.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SystemInfo returns the core's self-description, copied at load time.
func (s *Session) SystemInfo() SystemInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// AVInfo returns the audio/video parameters reported after the game loaded.
// It is the zero value until then or when the core does not report them.
func (s *Session) AVInfo() AVInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.av
}

// APIVersion returns the libretro API version the core reports, or 0.
func (s *Session) APIVersion() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiVersion
}

// Supports reports whether the loaded core exports op. Nothing is supported
// while unloaded.
func (s *Session) Supports(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eps.Has(op)
}

// CanSerialize reports whether save states are available.
func (s *Session) CanSerialize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eps.Has(OpSerializeSize) && s.eps.Has(OpSerialize) && s.eps.Has(OpUnserialize)
}

// Load opens the core at path, registers the host callbacks, initializes
// the core and reads its system info. If any required entry point is
// missing the module is closed again and the session stays unloaded.
func (s *Session) Load(ctx context.Context, path string) (err error) {
	_, span := s.tracer.Start(ctx, "core.Load", trace.WithAttributes(attribute.String("core.path", path)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnloaded {
		return preconditionError("load", s.state, StateUnloaded)
	}
	defer func() {
		if s.metrics == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.CoreLoad(result)
	}()

	lib, err := s.opener(path)
	if err != nil {
		return oops.In("core").Code(CodeLoadFailed).With("path", path).Wrap(kind(ErrLoad, err))
	}

	eps, missing := resolve(lib, s.bind)
	if len(missing) > 0 {
		s.closeLibrary(lib, path)
		return oops.In("core").Code(CodeMissingSymbols).
			With("path", path).With("missing", strings.Join(missing, ",")).
			Hint("the file is not a libretro core or was built against another API").
			Wrap(kind(ErrLoad, nil))
	}

	b := bridge.New(s.runtime, s.env, bridge.WithLogger(s.logger), bridge.WithObserver(s.observer()))
	tr, uninstall, err := s.install(b)
	if err != nil {
		s.closeLibrary(lib, path)
		return oops.In("core").Code(CodeSessionActive).With("path", path).Wrap(kind(ErrLoad, err))
	}

	// Environment goes first so the core can query it from the other setters
	// and from init.
	eps.SetEnvironment(tr.Environment)
	eps.SetVideoRefresh(tr.VideoRefresh)
	if eps.Has(OpSetAudioSample) {
		eps.SetAudioSample(tr.AudioSample)
	}
	if eps.Has(OpSetAudioSampleBatch) {
		eps.SetAudioSampleBatch(tr.AudioSampleBatch)
	}
	eps.SetInputPoll(tr.InputPoll)
	eps.SetInputState(tr.InputState)

	eps.Init()

	var raw retro.SystemInfo
	eps.GetSystemInfo(&raw)
	info := systemInfoFrom(&raw)

	var api uint32
	if eps.Has(OpAPIVersion) {
		api = eps.APIVersion()
	}

	s.lib = lib
	s.eps = eps
	s.uninstall = uninstall
	s.path = path
	s.info = info
	s.apiVersion = api
	s.id = NewULID()
	s.log = s.logger.With("session", s.id.String(), "core", info.LibraryName)
	s.state = StateLoaded

	s.log.Info("core loaded",
		"version", info.LibraryVersion,
		"extensions", info.ValidExtensions,
		"need_fullpath", info.NeedFullpath,
		"api_version", api)
	if api != 0 && api != retro.APIVersion {
		s.log.Warn("core api version differs from host", "core_api", api, "host_api", retro.APIVersion)
	}
	return nil
}

// LoadGame hands game to the core. A rejected game leaves the session
// loaded.
func (s *Session) LoadGame(ctx context.Context, game Game) (err error) {
	_, span := s.tracer.Start(ctx, "core.LoadGame", trace.WithAttributes(attribute.String("game.path", game.Path)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoaded {
		return preconditionError("load_game", s.state, StateLoaded)
	}

	errb := oops.In("core").Code(CodeLoadGameFailed).With("path", game.Path)
	if s.info.NeedFullpath && game.Path == "" {
		return errb.Hint("this core loads content from a file path").Wrap(kind(ErrLoadGame, nil))
	}

	var pin runtime.Pinner
	defer pin.Unpin()
	info, err := gameInfo(&pin, game)
	if err != nil {
		return errb.Wrap(kind(ErrLoadGame, err))
	}

	if !s.eps.LoadGame(info) {
		return errb.Hint("the core rejected the content").Wrap(kind(ErrLoadGame, nil))
	}

	s.afterGameLoaded()
	s.log.Info("game loaded", "path", game.Path, "bytes", len(game.Data),
		"fps", s.av.FPS, "sample_rate", s.av.SampleRate)
	return nil
}

// LoadGameSpecial loads multi-part content of a core-defined type.
func (s *Session) LoadGameSpecial(ctx context.Context, gameType uint32, games []Game) (err error) {
	_, span := s.tracer.Start(ctx, "core.LoadGameSpecial", trace.WithAttributes(attribute.Int("game.parts", len(games))))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoaded {
		return preconditionError("load_game_special", s.state, StateLoaded)
	}
	if !s.eps.Has(OpLoadGameSpecial) {
		return unsupportedError(OpLoadGameSpecial)
	}
	errb := oops.In("core").Code(CodeLoadGameFailed).With("game_type", gameType)
	if len(games) == 0 {
		return errb.Wrap(kind(ErrLoadGame, nil))
	}

	var pin runtime.Pinner
	defer pin.Unpin()
	infos := make([]retro.GameInfo, len(games))
	for i, g := range games {
		info, err := gameInfo(&pin, g)
		if err != nil {
			return errb.With("part", i).Wrap(kind(ErrLoadGame, err))
		}
		infos[i] = *info
	}

	if !s.eps.LoadGameSpecial(gameType, &infos[0], uintptr(len(infos))) {
		return errb.Hint("the core rejected the content").Wrap(kind(ErrLoadGame, nil))
	}
	s.afterGameLoaded()
	return nil
}

func (s *Session) afterGameLoaded() {
	if s.eps.Has(OpGetSystemAVInfo) {
		var raw retro.SystemAVInfo
		s.eps.GetSystemAVInfo(&raw)
		s.av = avInfoFrom(&raw)
	}
	s.state = StateGameLoaded
	if s.metrics != nil {
		s.metrics.SetGameLoaded(true)
	}
}

// RunFrame runs the core for exactly one video frame. It blocks until the
// core returns; every callback for the frame has been delivered by then.
func (s *Session) RunFrame(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateGameLoaded {
		return preconditionError("run_frame", s.state, StateGameLoaded)
	}
	start := time.Now()
	s.eps.Run()
	if s.metrics != nil {
		s.metrics.FrameCompleted(time.Since(start))
	}
	return nil
}

// Reset performs a soft reset of the running game.
func (s *Session) Reset(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "core.Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateGameLoaded {
		return preconditionError("reset", s.state, StateGameLoaded)
	}
	s.eps.Reset()
	return nil
}

// UnloadGame unloads the running game and returns to the loaded state.
func (s *Session) UnloadGame(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "core.UnloadGame")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateGameLoaded {
		return preconditionError("unload_game", s.state, StateGameLoaded)
	}
	s.unloadGame()
	return nil
}

func (s *Session) unloadGame() {
	if s.eps.Has(OpUnloadGame) {
		s.eps.UnloadGame()
	}
	s.av = AVInfo{}
	s.state = StateLoaded
	if s.metrics != nil {
		s.metrics.SetGameLoaded(false)
	}
}

// Unload tears the core down from any state. It never fails and is safe to
// call repeatedly.
func (s *Session) Unload(ctx context.Context) {
	_, span := s.tracer.Start(ctx, "core.Unload")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnloaded {
		return
	}
	if s.state == StateGameLoaded {
		s.unloadGame()
	}
	if s.eps.Has(OpDeinit) {
		s.eps.Deinit()
	}
	if s.uninstall != nil {
		s.uninstall()
	}
	s.closeLibrary(s.lib, s.path)
	s.log.Info("core unloaded")

	s.lib = nil
	s.eps = nil
	s.uninstall = nil
	s.path = ""
	s.info = SystemInfo{}
	s.av = AVInfo{}
	s.apiVersion = 0
	s.id = ulid.ULID{}
	s.log = s.logger
	s.state = StateUnloaded
}

// SetControllerPortDevice tells the core which device is plugged into port.
func (s *Session) SetControllerPortDevice(port, device uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnloaded {
		return preconditionError("set_controller_port_device", s.state, StateLoaded, StateGameLoaded)
	}
	if !s.eps.Has(OpSetControllerPortDevice) {
		return unsupportedError(OpSetControllerPortDevice)
	}
	s.eps.SetControllerPortDevice(port, device)
	return nil
}

func (s *Session) closeLibrary(lib Library, path string) {
	if lib == nil {
		return
	}
	if err := lib.Close(); err != nil {
		errutil.LogError(s.logger, "close core library failed", oops.In("core").With("path", path).Wrap(err))
	}
}

func (s *Session) observer() bridge.Observer {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}

// gameInfo builds the C descriptor for g. Every Go buffer it references is
// pinned in pin, which the caller releases after the core returns.
func gameInfo(pin *runtime.Pinner, g Game) (*retro.GameInfo, error) {
	info := &retro.GameInfo{}
	if g.Path != "" {
		b, err := retro.CString(g.Path)
		if err != nil {
			return nil, err
		}
		pin.Pin(&b[0])
		info.Path = &b[0]
	}
	if len(g.Data) > 0 {
		pin.Pin(&g.Data[0])
		info.Data = unsafe.Pointer(&g.Data[0])
		info.Size = uintptr(len(g.Data))
	}
	if g.Meta != "" {
		b, err := retro.CString(g.Meta)
		if err != nil {
			return nil, err
		}
		pin.Pin(&b[0])
		info.Meta = &b[0]
	}
	pin.Pin(info)
	return info, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
