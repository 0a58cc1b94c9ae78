// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package msram

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/log"
	"github.com/ucov-project/ucov/pkg/mcif"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// EmuDevice emulates the hardware in plain memory. It validates the
// same invariants a real part would enforce and records what was done
// to it, which makes it the device of choice for tests and dry runs.
type EmuDevice struct {
	hooks   [ucode.NumHookSlots]uint32
	enabled bool
	patches map[ucode.Addr]ucode.Triad
	region  *RAMRegion

	// FailInstall, if set, is consulted before every hook install.
	// Tests use it to inject hardware failures.
	FailInstall func(slot int, trigger ucode.Addr) error

	// Counters of performed operations.
	Installs, Removes, Fences, PatchWrites int
}

// NewEmuDevice returns an emulated device with hook processing off and
// empty patch RAM.
func NewEmuDevice() *EmuDevice {
	return &EmuDevice{patches: make(map[ucode.Addr]ucode.Triad)}
}

func (d *EmuDevice) ApplyPatch(p *ucode.Patch) error {
	for i := 0; i < p.Len(); i++ {
		d.patches[p.Addr().Add(4*i)] = p.Triad(i)
	}
	d.PatchWrites += p.Len()
	log.Logf(3, "emu: applied patch of %v triads at %v", p.Len(), p.Addr())
	return nil
}

func (d *EmuDevice) InstallHook(slot int, trigger, target ucode.Addr, enabled bool) error {
	if slot < 0 || slot >= ucode.NumHookSlots {
		return fmt.Errorf("hook slot %v out of range", slot)
	}
	if d.FailInstall != nil {
		if err := d.FailInstall(slot, trigger); err != nil {
			return err
		}
	}
	value, err := HookValue(trigger, target, enabled)
	if err != nil {
		return err
	}
	d.hooks[slot] = value
	d.Installs++
	log.Logf(3, "emu: hook %v: %v -> %v value %#x", slot, trigger, target, value)
	return nil
}

func (d *EmuDevice) RemoveHook(slot int) error {
	if slot < 0 || slot >= ucode.NumHookSlots {
		return fmt.Errorf("hook slot %v out of range", slot)
	}
	d.hooks[slot] = 0
	d.Removes++
	return nil
}

func (d *EmuDevice) EnableHooks()  { d.enabled = true }
func (d *EmuDevice) DisableHooks() { d.enabled = false }

func (d *EmuDevice) Fence() { d.Fences++ }

func (d *EmuDevice) Region(desc mcif.Description) (mcif.Region, error) {
	if d.region == nil {
		d.region = NewRAMRegion(desc.MemoryUsage())
	}
	return d.region, nil
}

// HooksEnabled reports whether match register processing is on.
func (d *EmuDevice) HooksEnabled() bool { return d.enabled }

// Hook returns the raw value of a match register slot.
func (d *EmuDevice) Hook(slot int) uint32 { return d.hooks[ucode.HookIndexOf(slot)] }

// PatchedTriad returns the triad loaded at the given patch RAM
// address, if any.
func (d *EmuDevice) PatchedTriad(base ucode.Addr) (ucode.Triad, bool) {
	t, ok := d.patches[base]
	return t, ok
}
