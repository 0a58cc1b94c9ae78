// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package modeng

import "github.com/ucov-project/ucov/pkg/ucode"

// OpClass is a coarse classification of opcodes as far as hooking is
// concerned. The full opcode map differs between models and is only
// partially recovered, so the classification is supplied as data.
type OpClass int

const (
	// ClassOther is a recognized opcode with no special handling.
	ClassOther OpClass = iota
	// ClassSUBR calls a subroutine.
	ClassSUBR
	// ClassCondJump is a conditional jump.
	ClassCondJump
	// ClassMoveFromCREG reads a control register.
	ClassMoveFromCREG
	// ClassMoveToCREG writes a control register.
	ClassMoveToCREG
	// ClassTestUState inspects the micro-architectural state word and
	// never survives relocation into patch RAM.
	ClassTestUState
	// ClassUnknown is an opcode the classification does not cover.
	ClassUnknown
)

var classNames = [...]string{"other", "SUBR", "conditional jump", "MOVEFROMCREG",
	"MOVETOCREG", "TESTUSTATE", "unknown"}

func (c OpClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "invalid"
}

// Policy classifies opcodes for one CPU model.
type Policy interface {
	Class(op ucode.Opcode) OpClass
}

// OpcodeRange assigns a class to an inclusive opcode range.
type OpcodeRange struct {
	From, To ucode.Opcode
	Class    OpClass
}

// RangePolicy classifies opcodes by the first matching range; opcodes
// covered by no range are ClassUnknown.
type RangePolicy struct {
	Ranges []OpcodeRange
}

func (p *RangePolicy) Class(op ucode.Opcode) OpClass {
	for _, r := range p.Ranges {
		if op >= r.From && op <= r.To {
			return r.Class
		}
	}
	return ClassUnknown
}

// GoldmontPolicy returns the opcode classification recovered for the
// Goldmont micro-sequencer.
func GoldmontPolicy() *RangePolicy {
	return &RangePolicy{Ranges: []OpcodeRange{
		{0x0a8, 0x0af, ClassTestUState},
		{0x180, 0x1bf, ClassMoveFromCREG},
		{0x1c0, 0x1ff, ClassMoveToCREG},
		{0x440, 0x45f, ClassSUBR},
		{0x4e0, 0x4ff, ClassCondJump},
		{0x000, 0x17f, ClassOther},
		{0x200, 0x3ff, ClassOther},
		{0x400, 0x43f, ClassOther},
		{0x460, 0x4df, ClassOther},
		{0x500, 0x5ff, ClassOther},
	}}
}
