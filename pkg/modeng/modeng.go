// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package modeng decides which micro-addresses can be hooked and
// rewrites their triads so that execution detours through an
// instrumentation trampoline and comes back.
package modeng

import (
	"fmt"
	"strings"

	"github.com/ucov-project/ucov/pkg/romdump"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// Flags restrict what kinds of instructions and sequence words the
// engine is willing to modify.
type Flags uint64

const (
	// NoGotos refuses triads with a jump near the hooked slot.
	NoGotos Flags = 1 << iota
	// NoSaveupIPSeqWords refuses sequence words that save the
	// micro-return address near the hooked slot.
	NoSaveupIPSeqWords
	// NoSaveupIPRegOvr refuses instructions that save the
	// micro-return address through the register override path.
	NoSaveupIPRegOvr
	// NoSUBR refuses subroutine calls.
	NoSUBR
	// NoControl refuses any control operation near the hooked slot.
	NoControl
	// NoSync refuses any synchronization operation near the hooked slot.
	NoSync
	// NoConditionalJumps refuses conditional jumps.
	NoConditionalJumps
	// NoUnknownInstructions refuses triads with opcodes the policy
	// does not recognize.
	NoUnknownInstructions
	// NoMoveFromCREG refuses control register accesses.
	NoMoveFromCREG
)

var flagNames = map[Flags]string{
	NoGotos:               "no_gotos",
	NoSaveupIPSeqWords:    "no_saveupip_seqwords",
	NoSaveupIPRegOvr:      "no_saveupip_regovr",
	NoSUBR:                "no_subr",
	NoControl:             "no_control",
	NoSync:                "no_sync",
	NoConditionalJumps:    "no_conditional_jumps",
	NoUnknownInstructions: "no_unknown_instructions",
	NoMoveFromCREG:        "no_movefromcreg",
}

func (f Flags) String() string {
	var parts []string
	for flag := NoGotos; flag <= NoMoveFromCREG; flag <<= 1 {
		if f&flag != 0 {
			parts = append(parts, flagNames[flag])
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlags converts config flag names to a Flags value.
func ParseFlags(names []string) (Flags, error) {
	byName := make(map[string]Flags)
	for flag, name := range flagNames {
		byName[name] = flag
	}
	var f Flags
	for _, name := range names {
		flag, ok := byName[name]
		if !ok {
			return 0, fmt.Errorf("unknown modification flag %q", name)
		}
		f |= flag
	}
	return f, nil
}

// Settings configure the engine for one CPU model.
type Settings struct {
	Flags  Flags
	Policy Policy
}

// DefaultSettings rejects only triads with unrecognized opcodes,
// classified per the Goldmont opcode map.
func DefaultSettings() *Settings {
	return &Settings{
		Flags:  NoUnknownInstructions,
		Policy: GoldmontPolicy(),
	}
}

// Reason says why an address cannot be hooked.
type Reason int

const (
	// NotInROM: only the read-only area can be hooked.
	NotInROM Reason = iota + 1
	// NotInDump: the reference image does not cover the address.
	NotInDump
	// SeqWordParse: the captured sequence word does not decode.
	SeqWordParse
	// SeqWordBuild: the rewritten sequence word does not assemble.
	SeqWordBuild
	// ControlOpPresent: the hooked slot carries a control operation
	// the trampoline cannot reproduce.
	ControlOpPresent
	// BlockedOpcode: the triad contains an opcode that never survives
	// relocation.
	BlockedOpcode
	// FlagDisabled: rejected by one of the Flags.
	FlagDisabled
)

var reasonNames = [...]string{"", "not in ROM", "not in reference image",
	"sequence word parse failed", "sequence word build failed",
	"unsupported control operation", "blocked opcode", "disabled by flag"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) && r > 0 {
		return reasonNames[r]
	}
	return "invalid"
}

// NotHookableError explains why an address was rejected.
type NotHookableError struct {
	Addr    ucode.Addr
	Reason  Reason
	Flag    Flags          // set for FlagDisabled
	Op      ucode.Opcode   // set for BlockedOpcode
	Control ucode.ControlOp // set for ControlOpPresent
	Err     error          // set for SeqWordParse/SeqWordBuild
}

func (e *NotHookableError) Error() string {
	msg := fmt.Sprintf("%v is not hookable: %v", e.Addr, e.Reason)
	switch e.Reason {
	case FlagDisabled:
		msg += fmt.Sprintf(" %v", e.Flag)
	case BlockedOpcode:
		msg += fmt.Sprintf(" %#x", uint16(e.Op))
	case ControlOpPresent:
		msg += fmt.Sprintf(" %v", e.Control)
	case SeqWordParse, SeqWordBuild:
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *NotHookableError) Unwrap() error { return e.Err }

// Engine analyzes triads of one reference image.
type Engine struct {
	dump     *romdump.Dump
	settings Settings
}

// New builds an engine. A nil settings uses DefaultSettings.
func New(dump *romdump.Dump, settings *Settings) *Engine {
	if settings == nil {
		settings = DefaultSettings()
	}
	if settings.Policy == nil {
		panic("modification engine needs an opcode policy")
	}
	return &Engine{dump: dump, settings: *settings}
}

// IsHookable reports whether the address can be hooked, returning a
// *NotHookableError explaining the rejection otherwise. The analysis
// covers both partners of the even-aligned address pair: the hardware
// triggers at even granularity.
func (e *Engine) IsHookable(addr ucode.Addr) error {
	_, _, err := e.analyze(addr)
	return err
}

// analyze validates the triad of addr and returns it together with
// its decoded sequence word.
func (e *Engine) analyze(addr ucode.Addr) (ucode.Triad, ucode.SeqWord, error) {
	var triad ucode.Triad
	if !addr.InROM() {
		return triad, ucode.SeqWord{}, &NotHookableError{Addr: addr, Reason: NotInROM}
	}
	even := addr.AlignEven()
	off := even.TriadOffset()
	for i := range triad.Instructions {
		in, ok := e.dump.Instruction(even.TriadBase().Add(i))
		if !ok {
			return triad, ucode.SeqWord{}, &NotHookableError{Addr: addr, Reason: NotInDump}
		}
		triad.Instructions[i] = in
	}
	raw, ok := e.dump.RawSeqWord(even)
	if !ok {
		return triad, ucode.SeqWord{}, &NotHookableError{Addr: addr, Reason: NotInDump}
	}
	seqw, err := ucode.ParseSeqWordNoCRC(raw)
	if err != nil {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: SeqWordParse, Err: err}
	}
	triad.SeqWord = seqw

	pair := [2]ucode.Instruction{triad.Instructions[off], ucode.NOP}
	if off != 2 {
		pair[1] = triad.Instructions[off+1]
	}
	window := seqw.Window(off, 2)
	flags := e.settings.Flags
	class := func(in ucode.Instruction) OpClass { return e.settings.Policy.Class(in.Opcode()) }

	if flags&NoSUBR != 0 && (class(pair[0]) == ClassSUBR || class(pair[1]) == ClassSUBR) {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoSUBR}
	}
	if _, ok := window.Goto(); ok && flags&NoGotos != 0 {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoGotos}
	}
	if ctl, ok := window.Control(); ok && ctl.Value.IsSaveUPIP() && flags&NoSaveupIPSeqWords != 0 {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoSaveupIPSeqWords}
	}
	if flags&NoConditionalJumps != 0 &&
		(class(pair[0]) == ClassCondJump || class(pair[1]) == ClassCondJump) {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoConditionalJumps}
	}
	if flags&NoSaveupIPRegOvr != 0 &&
		(pair[0].Opcode() == ucode.OpSAVEUIPRegOvr || pair[1].Opcode() == ucode.OpSAVEUIPRegOvr) {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoSaveupIPRegOvr}
	}
	if flags&NoMoveFromCREG != 0 {
		for _, in := range pair {
			if c := class(in); c == ClassMoveFromCREG || c == ClassMoveToCREG {
				return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoMoveFromCREG}
			}
		}
	}
	if flags&NoUnknownInstructions != 0 {
		for _, in := range triad.Instructions {
			if class(in) == ClassUnknown {
				return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoUnknownInstructions}
			}
		}
	}
	if _, ok := window.Control(); ok && flags&NoControl != 0 {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoControl}
	}
	if _, ok := window.Sync(); ok && flags&NoSync != 0 {
		return triad, seqw, &NotHookableError{Addr: addr, Reason: FlagDisabled, Flag: NoSync}
	}
	for _, in := range triad.Instructions {
		if class(in) == ClassTestUState {
			return triad, seqw, &NotHookableError{Addr: addr, Reason: BlockedOpcode, Op: in.Opcode()}
		}
	}
	return triad, seqw, nil
}

// ModifyTriad rewrites the triad of addr into the detour form loaded
// into the trampoline: the hooked instruction itself, a NOP, and a
// jump back to the instruction after the hooked one. The sequence word
// keeps only the operations of the hooked slot, moved along with it.
func (e *Engine) ModifyTriad(addr ucode.Addr) (ucode.Triad, error) {
	triad, seqw, err := e.analyze(addr)
	if err != nil {
		return ucode.Triad{}, err
	}
	off := addr.TriadOffset()
	hooked := ucode.NOP
	if off < 3 {
		hooked = triad.Instructions[off]
	}
	out := ucode.Triad{
		Instructions: [3]ucode.Instruction{
			hooked,
			ucode.NOP,
			ucode.UJMP(addr.Next()),
		},
		SeqWord: seqw.Window(off, 1).Shift(1),
	}
	if ctl, ok := out.SeqWord.Control(); ok &&
		!ctl.Value.IsTerminator() && !ctl.Value.IsSaveUPIP() {
		// Behavior of other control operations after relocation is
		// unknown.
		return ucode.Triad{}, &NotHookableError{Addr: addr, Reason: ControlOpPresent, Control: ctl.Value}
	}
	if _, err := out.SeqWord.Assemble(); err != nil {
		return ucode.Triad{}, &NotHookableError{Addr: addr, Reason: SeqWordBuild, Err: err}
	}
	return out, nil
}
