// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package input holds RetroPad button state and answers core input queries.
package input

import (
	"fmt"
	"strings"
	"sync"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// MaxPorts is the number of controller ports a Pad tracks.
const MaxPorts = 4

// Button is a RetroPad button id.
type Button uint8

// RetroPad buttons.
const (
	ButtonB Button = iota
	ButtonY
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonX
	ButtonL
	ButtonR
	ButtonL2
	ButtonR2
	ButtonL3
	ButtonR3
	buttonCount
)

var buttonNames = [buttonCount]string{
	"b", "y", "select", "start", "up", "down", "left", "right",
	"a", "x", "l", "r", "l2", "r2", "l3", "r3",
}

func (b Button) String() string {
	if b >= buttonCount {
		return fmt.Sprintf("button(%d)", uint8(b))
	}
	return buttonNames[b]
}

// ParseButton resolves a case-insensitive button name.
func ParseButton(name string) (Button, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range buttonNames {
		if n == name {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// ParseButtons resolves a comma separated list such as "a,start".
func ParseButtons(list string) ([]Button, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []Button
	for _, name := range strings.Split(list, ",") {
		b, err := ParseButton(name)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Pad is the button state of every port. Changes made between frames become
// visible to the core at its next input poll, so a frame always sees one
// consistent snapshot.
//
// Pad is safe for concurrent use.
type Pad struct {
	mu      sync.Mutex
	pending [MaxPorts]uint16
	polled  [MaxPorts]uint16
	polls   uint64
}

// NewPad returns a pad with every button released.
func NewPad() *Pad {
	return &Pad{}
}

// Set presses or releases a button on port. Out of range ports and buttons
// are ignored.
func (p *Pad) Set(port int, b Button, pressed bool) {
	if port < 0 || port >= MaxPorts || b >= buttonCount {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pressed {
		p.pending[port] |= 1 << b
	} else {
		p.pending[port] &^= 1 << b
	}
}

// Press presses buttons on port.
func (p *Pad) Press(port int, buttons ...Button) {
	for _, b := range buttons {
		p.Set(port, b, true)
	}
}

// Release releases buttons on port.
func (p *Pad) Release(port int, buttons ...Button) {
	for _, b := range buttons {
		p.Set(port, b, false)
	}
}

// ReleaseAll releases every button on every port.
func (p *Pad) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = [MaxPorts]uint16{}
}

// Pressed returns the buttons the core currently sees pressed on port.
func (p *Pad) Pressed(port int) []Button {
	if port < 0 || port >= MaxPorts {
		return nil
	}
	p.mu.Lock()
	mask := p.polled[port]
	p.mu.Unlock()

	var out []Button
	for b := Button(0); b < buttonCount; b++ {
		if mask&(1<<b) != 0 {
			out = append(out, b)
		}
	}
	return out
}

// Polls returns how many input polls the pad has served.
func (p *Pad) Polls() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// OnInputPoll publishes pending changes to the core.
func (p *Pad) OnInputPoll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polled = p.pending
	p.polls++
}

// OnInputState answers joypad queries: 1 for a pressed button, or the whole
// button mask for the bitmask id. The mask carries the int16_t bit pattern
// the core reads, so R3 comes back negative. Every other device reads as 0.
func (p *Pad) OnInputState(port, device, index, id int) int {
	if uint32(device) != retro.DeviceJoypad || index != 0 || port < 0 || port >= MaxPorts {
		return 0
	}
	p.mu.Lock()
	mask := p.polled[port]
	p.mu.Unlock()

	switch {
	case uint32(id) == retro.DeviceIDJoypadMask:
		return int(int16(mask))
	case id >= 0 && id < int(buttonCount):
		return int(mask>>uint(id)) & 1
	default:
		return 0
	}
}
