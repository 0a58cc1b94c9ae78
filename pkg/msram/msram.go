// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package msram talks to the micro-sequencer hardware: loading patches
// into patch RAM, programming the match registers that redirect
// execution, and mapping the shared memory area the instrumentation
// reports into.
package msram

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/mcif"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// Device is the hardware access surface. The harness treats hook
// installation as an opaque capability; how a device reaches the match
// registers is its own business.
type Device interface {
	// ApplyPatch loads the patch body into patch RAM.
	ApplyPatch(p *ucode.Patch) error
	// InstallHook programs the match register slot to redirect
	// execution from trigger to target.
	InstallHook(slot int, trigger, target ucode.Addr, enabled bool) error
	// RemoveHook clears the match register slot.
	RemoveHook(slot int) error
	// EnableHooks turns on match register processing globally.
	EnableHooks()
	// DisableHooks turns off match register processing globally.
	DisableHooks()
	// Fence orders preceding memory accesses against the sequencer.
	Fence()
	// Region maps the communication area of the given layout.
	Region(desc mcif.Description) (mcif.Region, error)
}

const (
	hookValueBase = 0x3e000000
	hookEnableBit = 1 << 0
)

// HookValue encodes a match register value. The trigger must be an
// even address of the read-only area; the target must be an even patch
// RAM address.
func HookValue(trigger, target ucode.Addr, enabled bool) (uint32, error) {
	if !trigger.Hookable() {
		return 0, fmt.Errorf("hook trigger %v must be an even ROM address", trigger)
	}
	if !target.InMSRAM() || target%2 != 0 {
		return 0, fmt.Errorf("hook target %v must be an even patch RAM address", target)
	}
	value := uint32(hookValueBase) | uint32(target-ucode.MSRAMStart)/2<<16 | uint32(trigger)
	if enabled {
		value |= hookEnableBit
	}
	return value, nil
}

// HookGuard keeps match register processing disabled until closed.
// Host code that touches patch RAM runs under a guard so that a hook
// cannot fire on a half-written trampoline.
type HookGuard struct {
	dev Device
}

// DisableHooksGuarded turns hook processing off and returns a guard
// that turns it back on.
func DisableHooksGuarded(dev Device) *HookGuard {
	dev.DisableHooks()
	return &HookGuard{dev: dev}
}

// Close re-enables hook processing.
func (g *HookGuard) Close() {
	g.dev.EnableHooks()
}

// RAMRegion is a plain memory implementation of mcif.Region. Reads
// outside of the region return 0, writes outside of it are dropped.
type RAMRegion struct {
	words []uint16
}

// NewRAMRegion allocates a region of the given byte size.
func NewRAMRegion(bytes int) *RAMRegion {
	return &RAMRegion{words: make([]uint16, (bytes+1)/2)}
}

func (r *RAMRegion) Read16(word int) uint16 {
	if word < 0 || word >= len(r.words) {
		return 0
	}
	return r.words[word]
}

func (r *RAMRegion) Write16(word int, v uint16) {
	if word < 0 || word >= len(r.words) {
		return
	}
	r.words[word] = v
}

func (r *RAMRegion) Words() int { return len(r.words) }
