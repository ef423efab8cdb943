// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package frontend_test

import "github.com/retrobridge/retrobridge/internal/bridge"

func frontendFrame(data []byte) bridge.Frame {
	return bridge.Frame{Data: data, Width: 2, Height: 1, Pitch: len(data)}
}
