// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ucode models the address space, instruction words and sequence
// words of the micro-sequencer. Addresses cover both the read-only area
// and the patch RAM that follows it; every fourth address names the
// sequence word of its triad rather than an instruction.
package ucode

import "fmt"

// Addr is a micro-address. Valid values are [0, AddrSpaceEnd).
type Addr uint16

const (
	// ROMSize is the number of addresses in the read-only area.
	// Patch RAM starts right after it.
	ROMSize Addr = 0x7c00
	// MSRAMStart is the first patch RAM address.
	MSRAMStart Addr = ROMSize
	// MSRAMRows is the number of triads in patch RAM.
	MSRAMRows = 128
	// AddrSpaceEnd is one past the last valid address.
	AddrSpaceEnd = MSRAMStart + 4*MSRAMRows
)

// AddrOf converts an integer to Addr, panicking if it falls outside
// of the address space. Arithmetic that can take an address out of
// range is a programmer error, not an input error.
func AddrOf(v int) Addr {
	if v < 0 || v >= int(AddrSpaceEnd) {
		panic(fmt.Sprintf("micro-address 0x%x out of range [0, 0x%x)", v, int(AddrSpaceEnd)))
	}
	return Addr(v)
}

// InROM reports whether the address lies in the read-only area.
func (a Addr) InROM() bool {
	return a < ROMSize
}

// InMSRAM reports whether the address lies in patch RAM.
func (a Addr) InMSRAM() bool {
	return a >= MSRAMStart && a < AddrSpaceEnd
}

// IsSeqWord reports whether the address names a sequence word slot.
// Such addresses do not hold an independently addressable instruction.
func (a Addr) IsSeqWord() bool {
	return a%4 == 3
}

// TriadBase returns the first address of the triad containing a.
func (a Addr) TriadBase() Addr {
	return a &^ 3
}

// TriadOffset returns the position of a within its triad, in [0, 3].
// Offset 3 is the sequence word.
func (a Addr) TriadOffset() int {
	return int(a & 3)
}

// AlignEven rounds the address down to an even value. Hook triggers
// operate at even granularity, covering both partners.
func (a Addr) AlignEven() Addr {
	return a &^ 1
}

// Add returns a shifted by n, panicking if the result leaves the
// address space.
func (a Addr) Add(n int) Addr {
	return AddrOf(int(a) + n)
}

// AddSlots returns a advanced by n instruction slots, stepping over
// the sequence word slot of each triad. This is the addition control
// transfers use when they target a specific slot of a destination
// triad rather than its base. Panics if a is a sequence word slot.
func (a Addr) AddSlots(n int) Addr {
	return AddrOfSlot(OpSlot(int(SlotOf(a)) + n))
}

// Next returns the next instruction address after a, skipping the
// sequence word slot at the end of a triad.
func (a Addr) Next() Addr {
	n := a.Add(1)
	if n.IsSeqWord() {
		n = n.Add(1)
	}
	return n
}

// Hookable reports whether a hardware match register may trigger on
// this address: triggers must be even and point into the read-only area.
func (a Addr) Hookable() bool {
	return a%2 == 0 && a.InROM()
}

func (a Addr) String() string {
	return fmt.Sprintf("U%04x", uint16(a))
}

// PatchOffset converts a patch RAM address to its dense offset within
// the patch body: sequence word slots do not occupy patch body space.
// Panics unless a is a patch RAM instruction address.
func (a Addr) PatchOffset() int {
	if !a.InMSRAM() {
		panic(fmt.Sprintf("%v is not a patch RAM address", a))
	}
	if a.IsSeqWord() {
		panic(fmt.Sprintf("%v is a sequence word slot, not an instruction", a))
	}
	rel := a - MSRAMStart
	return int(rel/4)*3 + rel.TriadOffset()
}

// NumOpSlots is the number of instruction slots in the address space
// (sequence word slots excluded).
const NumOpSlots = int(AddrSpaceEnd) / 4 * 3

// OpSlot is a dense index of an instruction slot, used to key
// per-address tables without wasting space on sequence word slots.
type OpSlot int

// SlotOf returns the dense slot index for an instruction address.
// Panics on sequence word addresses.
func SlotOf(a Addr) OpSlot {
	if a.IsSeqWord() {
		panic(fmt.Sprintf("%v is a sequence word slot", a))
	}
	return OpSlot(int(a/4)*3 + a.TriadOffset())
}

// AddrOfSlot is the inverse of SlotOf.
func AddrOfSlot(s OpSlot) Addr {
	if s < 0 || int(s) >= NumOpSlots {
		panic(fmt.Sprintf("op slot %d out of range [0, %d)", s, NumOpSlots))
	}
	return AddrOf(int(s)/3*4 + int(s)%3)
}

// NumHookSlots is the number of hardware match registers.
const NumHookSlots = 32

// HookIndex is a match register index in [0, NumHookSlots).
type HookIndex int

// HookIndexOf converts an integer to HookIndex, panicking when out of range.
func HookIndexOf(v int) HookIndex {
	if v < 0 || v >= NumHookSlots {
		panic(fmt.Sprintf("hook index %d out of range [0, %d)", v, NumHookSlots))
	}
	return HookIndex(v)
}

// Addr returns the register file address of the match register.
// Each register occupies two consecutive addresses.
func (i HookIndex) Addr() Addr {
	return Addr(int(i) * 2)
}
