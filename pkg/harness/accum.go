// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import "github.com/ucov-project/ucov/pkg/ucode"

// HitResult is the outcome of one hook after a run: how many times the
// trampoline saw the address execute. Count 0 means the address was
// hooked but never reached.
type HitResult struct {
	Addr  ucode.Addr
	Count uint16
}

// Covered reports whether the address executed at least once.
func (r HitResult) Covered() bool { return r.Count > 0 }

// Accumulator aggregates coverage across runs: one saturating byte
// counter per instruction slot of the address space.
type Accumulator struct {
	counts []uint8
}

// NewAccumulator returns an empty accumulator covering the whole
// address space.
func NewAccumulator() *Accumulator {
	return &Accumulator{counts: make([]uint8, ucode.NumOpSlots)}
}

func (a *Accumulator) bump(addr ucode.Addr) {
	slot := ucode.SlotOf(addr)
	if a.counts[slot] < 0xff {
		a.counts[slot]++
	}
}

// Count returns how many runs covered the address, saturated at 255.
func (a *Accumulator) Count(addr ucode.Addr) uint8 {
	return a.counts[ucode.SlotOf(addr)]
}

// Covered returns all addresses with a nonzero count, in address order.
func (a *Accumulator) Covered() []ucode.Addr {
	var res []ucode.Addr
	for slot, count := range a.counts {
		if count > 0 {
			res = append(res, ucode.AddrOfSlot(ucode.OpSlot(slot)))
		}
	}
	return res
}

// Reset zeroes all counters.
func (a *Accumulator) Reset() {
	for i := range a.counts {
		a.counts[i] = 0
	}
}
