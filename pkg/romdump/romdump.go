// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package romdump holds reference images of the sequencer ROM: the
// instruction and sequence words captured from a live part, keyed by
// micro-address. Images may be truncated if the capture stopped early.
package romdump

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/ucode"
)

// Dump is a captured ROM image. Instruction words are stored without
// their parity bits, sequence words without their parity code.
type Dump struct {
	model  uint32
	instrs []uint64
	seqws  []uint32
}

// New builds a dump from captured words. instrs holds one word per
// instruction slot (sequence word slots excluded), seqws one word per
// triad. The image must not extend past the end of ROM, and the two
// arrays must describe the same number of complete triads.
func New(model uint32, instrs []uint64, seqws []uint32) (*Dump, error) {
	const maxTriads = int(ucode.ROMSize) / 4
	if len(seqws) > maxTriads {
		return nil, fmt.Errorf("image of %v triads exceeds ROM size %v", len(seqws), maxTriads)
	}
	if len(instrs) != 3*len(seqws) {
		return nil, fmt.Errorf("image has %v instruction words for %v triads", len(instrs), len(seqws))
	}
	return &Dump{model: model, instrs: instrs, seqws: seqws}, nil
}

// Model returns the CPU model the image was captured from.
func (d *Dump) Model() uint32 { return d.model }

// Triads returns the number of complete triads in the image.
func (d *Dump) Triads() int { return len(d.seqws) }

// End returns one past the last address covered by the image.
func (d *Dump) End() ucode.Addr { return ucode.Addr(4 * len(d.seqws)) }

// Instruction returns the instruction at a with recomputed parity
// bits, or false if a is not an instruction address within the image.
func (d *Dump) Instruction(a ucode.Addr) (ucode.Instruction, bool) {
	if !a.InROM() || a.IsSeqWord() || a >= d.End() {
		return 0, false
	}
	return ucode.MakeInstruction(d.instrs[int(a/4)*3+a.TriadOffset()]), true
}

// RawSeqWord returns the sequence word of the triad containing a, or
// false if the triad is not in the image.
func (d *Dump) RawSeqWord(a ucode.Addr) (uint32, bool) {
	if !a.InROM() || a >= d.End() {
		return 0, false
	}
	return d.seqws[a/4], true
}

// SeqWord decodes the sequence word of the triad containing a.
func (d *Dump) SeqWord(a ucode.Addr) (ucode.SeqWord, error) {
	raw, ok := d.RawSeqWord(a)
	if !ok {
		return ucode.SeqWord{}, fmt.Errorf("triad %v is not in the image", a.TriadBase())
	}
	return ucode.ParseSeqWordNoCRC(raw)
}
