// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build integration

package session_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/core/coretest"
	"github.com/retrobridge/retrobridge/internal/environ"
	"github.com/retrobridge/retrobridge/internal/frontend"
	"github.com/retrobridge/retrobridge/internal/input"
	"github.com/retrobridge/retrobridge/internal/managed"
	scriptlua "github.com/retrobridge/retrobridge/internal/managed/lua"
	"github.com/retrobridge/retrobridge/internal/observability"
	"github.com/retrobridge/retrobridge/internal/savestate"
)

const pulseScript = `
function on_input_poll(poll)
  if poll % 2 == 1 then
    retrobridge.press(0, "a")
  else
    retrobridge.release(0, "a")
  end
end
`

var _ = Describe("Core session", func() {
	var (
		ctx     context.Context
		dir     string
		rom     string
		fake    *coretest.FakeCore
		env     *environ.Handler
		metrics *observability.Metrics
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		rom = filepath.Join(dir, "smb.nes")
		Expect(os.WriteFile(rom, []byte("NES\x1a"), 0o600)).To(Succeed())

		fake = coretest.New()
		metrics = observability.NewMetrics(prometheus.NewRegistry())

		var err error
		env, err = environ.New(environ.Config{
			SystemDir: filepath.Join(dir, "system"),
			SaveDir:   filepath.Join(dir, "saves"),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(env.Close)
	})

	newSession := func(rt managed.Runtime) *core.Session {
		opts := append(fake.Options(),
			core.WithRuntime(rt),
			core.WithEnvironment(env),
			core.WithMetrics(metrics),
		)
		return core.NewSession(opts...)
	}

	Describe("driven through the frontend", func() {
		var (
			sink *frontend.Sink
			fe   *frontend.Frontend
		)

		BeforeEach(func() {
			sink = frontend.NewSink()
			fe = frontend.New(newSession(managed.NewDirect(sink)),
				frontend.WithStore(savestate.New(filepath.Join(dir, "states"))))
			DeferCleanup(fe.UnloadCore)
		})

		It("answers the system directory during init", func() {
			Expect(fe.LoadCore("nestopia_libretro.so")).To(BeTrue())
			Expect(fake.SystemDir()).To(Equal(filepath.Join(dir, "system")))
			Expect(testutil.ToFloat64(metrics.CoreLoadsTotal.WithLabelValues("ok"))).To(Equal(1.0))
		})

		It("runs frames into the sink and counts them", func() {
			Expect(fe.LoadCore("nestopia_libretro.so")).To(BeTrue())
			Expect(fe.LoadGame(rom)).To(BeTrue())
			Expect(testutil.ToFloat64(metrics.GameLoadedGauge)).To(Equal(1.0))

			n, err := frontend.NewRunner(fe).Run(ctx, 5, 1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(uint64(5)))

			frame, seq := sink.Video.Snapshot()
			Expect(seq).To(Equal(uint64(5)))
			Expect(frame.Data).To(Equal(fake.Frame()))
			Expect(sink.AudioFrames()).To(Equal(uint64(10)))
			Expect(testutil.ToFloat64(metrics.FramesTotal)).To(Equal(5.0))
			Expect(testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues(bridge.KindVideo))).To(Equal(5.0))

			fe.UnloadCore()
			Expect(testutil.ToFloat64(metrics.GameLoadedGauge)).To(Equal(0.0))
			Expect(fake.Closed()).To(Equal(1))
		})

		It("restores a slot after the game moved on", func() {
			Expect(fe.LoadCore("nestopia_libretro.so")).To(BeTrue())
			Expect(fe.LoadGame(rom)).To(BeTrue())
			Expect(fe.SaveSlot(1)).To(BeTrue())
			Expect(fe.RunFrame()).To(BeTrue())
			Expect(fe.LoadSlot(1)).To(BeTrue())
			Expect(fe.LoadSlot(2)).To(BeFalse())
		})

		It("rolls back when required symbols are missing", func() {
			fake.Exclude["retro_run"] = true
			Expect(fe.LoadCore("broken_libretro.so")).To(BeFalse())
			Expect(fe.Err()).To(MatchError(core.ErrLoad))
			Expect(fe.Session().State()).To(Equal(core.StateUnloaded))
			Expect(fake.Closed()).To(Equal(1))
			Expect(testutil.ToFloat64(metrics.CoreLoadsTotal.WithLabelValues("error"))).To(Equal(1.0))
		})
	})

	Describe("driven by a script", func() {
		It("feeds script input to the core", func() {
			pad := input.NewPad()
			rt, err := scriptlua.New("pulse.lua", pulseScript, scriptlua.WithPad(pad))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(rt.Close)

			fe := frontend.New(newSession(rt))
			DeferCleanup(fe.UnloadCore)
			Expect(fe.LoadCore("nestopia_libretro.so")).To(BeTrue())
			Expect(fe.LoadGame(rom)).To(BeTrue())

			for range 4 {
				Expect(fe.RunFrame()).To(BeTrue())
			}
			Expect(fake.InputSeen()).To(Equal([]int16{1, 0, 1, 0}))
			Expect(pad.Polls()).To(Equal(uint64(4)))

			created, idle := rt.States()
			Expect(created).To(Equal(idle))
		})
	})
})
