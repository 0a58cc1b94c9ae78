// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mcif provides typed access to the shared memory area used to
// communicate with instrumented microcode: the jump-back table that
// tells each trampoline where to return, and the coverage-result table
// the trampolines report into.
package mcif

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/ucode"
)

// Region is a window of volatile 16-bit cells. Reads outside of the
// region return 0 and writes outside of it are dropped; the microcode
// side owns the layout and stale accesses must never corrupt
// neighboring memory.
type Region interface {
	Read16(word int) uint16
	Write16(word int, v uint16)
	// Words returns the region size in 16-bit cells.
	Words() int
}

// Description is the layout of the communication area as compiled into
// the collector patch. All offsets are in bytes from the area base.
type Description struct {
	Base           uint64 // physical base address of the area
	JumpBackOffset int    // byte offset of the jump-back table
	CoverageOffset int    // byte offset of the coverage-result table
	MaxHooks       int    // number of table entries
}

// IndexMask returns the mask the microcode applies to a hook index
// before indexing the tables: the smallest all-ones value covering
// MaxHooks entries.
func (d Description) IndexMask() int {
	mask := 1
	for mask < d.MaxHooks+1 {
		mask <<= 1
	}
	return mask - 1
}

// TableBytes returns the size of one table in bytes. Entries are
// 16 bits wide.
func (d Description) TableBytes() int {
	return 2 * d.MaxHooks
}

// MemoryUsage returns the total number of bytes the area occupies.
func (d Description) MemoryUsage() int {
	end := d.JumpBackOffset + d.TableBytes()
	if cend := d.CoverageOffset + d.TableBytes(); cend > end {
		end = cend
	}
	return end
}

func (d Description) validate() {
	if d.Base == 0 {
		panic("communication area base is not set")
	}
	if d.MaxHooks < 1 || d.MaxHooks > ucode.NumHookSlots {
		panic(fmt.Sprintf("bad hook count %v", d.MaxHooks))
	}
	if d.JumpBackOffset%2 != 0 || d.CoverageOffset%2 != 0 {
		panic("table offsets must be 16-bit aligned")
	}
	if over := d.JumpBackOffset+d.TableBytes() > d.CoverageOffset &&
		d.CoverageOffset+d.TableBytes() > d.JumpBackOffset; over {
		panic("jump-back and coverage tables overlap")
	}
}

// Interface reads and writes the communication area through a Region.
type Interface struct {
	desc Description
	mem  Region
}

// New builds an Interface for the given layout. Panics if the layout
// is malformed; layouts are compile-time constants of the collector
// patch, not runtime inputs.
func New(desc Description, mem Region) *Interface {
	desc.validate()
	if mem == nil {
		panic("nil interface region")
	}
	return &Interface{desc: desc, mem: mem}
}

// Desc returns the area layout.
func (ifc *Interface) Desc() Description { return ifc.desc }

// WriteJumpBack stores the address the trampoline for the given hook
// slot returns to.
func (ifc *Interface) WriteJumpBack(slot int, target ucode.Addr) {
	if !ifc.inRange(slot) {
		return
	}
	ifc.mem.Write16(ifc.desc.JumpBackOffset/2+slot, uint16(target))
}

// ReadJumpBack returns the stored jump-back address for the hook slot.
func (ifc *Interface) ReadJumpBack(slot int) ucode.Addr {
	if !ifc.inRange(slot) {
		return 0
	}
	return ucode.Addr(ifc.mem.Read16(ifc.desc.JumpBackOffset/2 + slot))
}

// WriteJumpBackTable fills the first len(targets) slots of the
// jump-back table. Entries beyond the table are dropped.
func (ifc *Interface) WriteJumpBackTable(targets []ucode.Addr) {
	for i, target := range targets {
		ifc.WriteJumpBack(i, target)
	}
}

// ZeroJumpBackTable clears the whole jump-back table.
func (ifc *Interface) ZeroJumpBackTable() {
	for i := 0; i < ifc.desc.MaxHooks; i++ {
		ifc.WriteJumpBack(i, 0)
	}
}

// ReadCoverage returns the coverage result the trampoline for the
// given hook slot reported.
func (ifc *Interface) ReadCoverage(slot int) uint16 {
	if !ifc.inRange(slot) {
		return 0
	}
	return ifc.mem.Read16(ifc.desc.CoverageOffset/2 + slot)
}

// WriteCoverage stores a coverage result for the hook slot. The
// trampoline is the usual writer; this is for tests and for seeding.
func (ifc *Interface) WriteCoverage(slot int, v uint16) {
	if !ifc.inRange(slot) {
		return
	}
	ifc.mem.Write16(ifc.desc.CoverageOffset/2+slot, v)
}

// ResetCoverage clears the whole coverage-result table.
func (ifc *Interface) ResetCoverage() {
	for i := 0; i < ifc.desc.MaxHooks; i++ {
		ifc.mem.Write16(ifc.desc.CoverageOffset/2+i, 0)
	}
}

// inRange bounds-checks a hook slot index. The tables are observed by
// running microcode, so a stale index must read as zero and write
// nothing rather than trap or touch a neighboring cell.
func (ifc *Interface) inRange(slot int) bool {
	return slot >= 0 && slot < ifc.desc.MaxHooks
}
