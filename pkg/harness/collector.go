// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/ucode"
)

// Collector describes an instrumentation patch: the trampoline bodies
// loaded into patch RAM and the location of the per-hook entry points
// hooks redirect to. The patch body itself is opaque to the harness;
// the install primitive splices the detour for a concrete hook into
// its entry.
type Collector struct {
	Patch       *ucode.Patch
	EntryBase   ucode.Addr
	EntryStride int // addresses per entry
}

// Entry returns the trampoline entry point of a hook slot.
func (c *Collector) Entry(slot int) ucode.Addr {
	return c.EntryBase.Add(slot * c.EntryStride)
}

// NewCollector validates the patch against the entry layout: every
// entry must point into the patch body.
func NewCollector(patch *ucode.Patch, entryBase ucode.Addr, stride, maxHooks int) (*Collector, error) {
	c := &Collector{Patch: patch, EntryBase: entryBase, EntryStride: stride}
	if stride < 1 || stride%4 != 0 {
		return nil, fmt.Errorf("entry stride %v is not a positive triad multiple", stride)
	}
	if entryBase < patch.Addr() || c.Entry(maxHooks-1) >= patch.End() {
		return nil, fmt.Errorf("entries [%v, %v] do not fit into the patch [%v, %v)",
			entryBase, c.Entry(maxHooks-1), patch.Addr(), patch.End())
	}
	return c, nil
}

// DefaultCollector lays out a collector at the start of patch RAM: one
// header triad for the setup entry followed by one trampoline triad
// per hook slot. Entries start as NOP triads; installing a hook fills
// in the detour.
func DefaultCollector(maxHooks int) (*Collector, error) {
	triads := make([]ucode.Triad, 1+maxHooks)
	base := ucode.MSRAMStart
	patch, err := ucode.NewPatch(base, triads)
	if err != nil {
		return nil, err
	}
	return NewCollector(patch, base.Add(4), 4, maxHooks)
}
