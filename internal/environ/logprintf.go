// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package environ

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// maxLogArgs is how many integer-class varargs a core log call can pass.
const maxLogArgs = 6

// logTarget receives core log lines. retro_log_printf_t carries no user
// data, so the most recent handler that served GET_LOG_INTERFACE owns it.
var (
	logTarget atomic.Pointer[Handler]

	logTrampolineOnce sync.Once
	logTrampoline     uintptr
	logTrampolineErr  error

	makeLogTrampoline = newLogTrampoline
)

func coreLogCallback() (uintptr, error) {
	logTrampolineOnce.Do(func() {
		logTrampoline, logTrampolineErr = makeLogTrampoline()
	})
	return logTrampoline, logTrampolineErr
}

// dispatchLog is the Go side of the log trampoline.
func dispatchLog(level uintptr, format *byte, a0, a1, a2, a3, a4, a5 uintptr) {
	var args []uintptr
	if varargsInRegisters {
		args = []uintptr{a0, a1, a2, a3, a4, a5}
	}
	msg := formatC(retro.GoString(format), args)

	logger := slog.Default()
	if h := logTarget.Load(); h != nil {
		logger = h.logger
	}
	logger.Log(context.Background(), slogLevel(uint32(level)), strings.TrimRight(msg, "\r\n"), "source", "core")
}

func slogLevel(level uint32) slog.Level {
	switch level {
	case retro.LogDebug:
		return slog.LevelDebug
	case retro.LogInfo:
		return slog.LevelInfo
	case retro.LogWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// formatC renders a printf format with integer-class arguments. Conversions
// that need floating point or an argument beyond args are copied verbatim.
func formatC(format string, args []uintptr) string {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		start := i
		i++
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			i++
		}
		for i < len(format) && (format[i] == '.' || (format[i] >= '0' && format[i] <= '9')) {
			i++
		}
		specEnd := i
		for i < len(format) && strings.IndexByte("hlLqjzt", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			sb.WriteString(format[start:])
			break
		}
		spec := format[start+1 : specEnd]
		length := format[specEnd:i]
		verb := format[i]

		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		if strings.IndexByte("diuxXocsp", verb) < 0 || next >= len(args) {
			sb.WriteString(format[start : i+1])
			continue
		}
		arg := args[next]
		next++

		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&sb, "%"+spec+"d", signedArg(arg, length))
		case 'u':
			fmt.Fprintf(&sb, "%"+spec+"d", unsignedArg(arg, length))
		case 'x', 'X', 'o':
			fmt.Fprintf(&sb, "%"+spec+string(verb), unsignedArg(arg, length))
		case 'c':
			fmt.Fprintf(&sb, "%"+spec+"c", rune(byte(arg)))
		case 's':
			s := "(null)"
			if arg != 0 {
				s = retro.GoString((*byte)(unsafe.Pointer(arg))) //nolint:govet // C string address from a register
			}
			fmt.Fprintf(&sb, "%"+spec+"s", s)
		case 'p':
			fmt.Fprintf(&sb, "0x%x", arg)
		}
	}
	return sb.String()
}

func signedArg(v uintptr, length string) int64 {
	switch length {
	case "hh":
		return int64(int8(v))
	case "h":
		return int64(int16(v))
	case "", "L":
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func unsignedArg(v uintptr, length string) uint64 {
	switch length {
	case "hh":
		return uint64(uint8(v))
	case "h":
		return uint64(uint16(v))
	case "", "L":
		return uint64(uint32(v))
	default:
		return uint64(v)
	}
}
