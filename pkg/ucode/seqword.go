// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import (
	"errors"
	"fmt"
	"strings"
)

// ControlOp is a sequence word control operation. The zero value means
// no control operation; values 0x0, 0x1 and 0xa do not decode.
type ControlOp uint8

const (
	CtlURET0           ControlOp = 0x2
	CtlURET1           ControlOp = 0x3
	CtlSAVEUPIP0       ControlOp = 0x4
	CtlSAVEUPIP1       ControlOp = 0x5
	CtlSAVEUPIP0RegOvr ControlOp = 0x6
	CtlSAVEUPIP1RegOvr ControlOp = 0x7
	CtlWRTAGW          ControlOp = 0x8
	CtlMSLOOP          ControlOp = 0x9
	CtlMSSTOP          ControlOp = 0xb
	CtlUEND0           ControlOp = 0xc
	CtlUEND1           ControlOp = 0xd
	CtlUEND2           ControlOp = 0xe
	CtlUEND3           ControlOp = 0xf
)

func (c ControlOp) valid() bool {
	return c >= CtlURET0 && c <= CtlUEND3 && c != 0xa
}

// IsTerminator reports whether the operation ends the micro-flow,
// either by returning or by ending the sequence.
func (c ControlOp) IsTerminator() bool {
	return c == CtlURET0 || c == CtlURET1 || c >= CtlUEND0
}

// IsSaveUPIP reports whether the operation saves the micro-return
// address for the uop at its index.
func (c ControlOp) IsSaveUPIP() bool {
	return c >= CtlSAVEUPIP0 && c <= CtlSAVEUPIP1RegOvr
}

var controlNames = map[ControlOp]string{
	CtlURET0: "URET0", CtlURET1: "URET1",
	CtlSAVEUPIP0: "SAVEUPIP0", CtlSAVEUPIP1: "SAVEUPIP1",
	CtlSAVEUPIP0RegOvr: "SAVEUPIP0_REGOVR", CtlSAVEUPIP1RegOvr: "SAVEUPIP1_REGOVR",
	CtlWRTAGW: "WRTAGW", CtlMSLOOP: "MSLOOP", CtlMSSTOP: "MSSTOP",
	CtlUEND0: "UEND0", CtlUEND1: "UEND1", CtlUEND2: "UEND2", CtlUEND3: "UEND3",
}

func (c ControlOp) String() string {
	if name := controlNames[c]; name != "" {
		return name
	}
	return fmt.Sprintf("CTRL%#x", uint8(c))
}

// SyncOp is a sequence word synchronization operation. The zero value
// means no synchronization.
type SyncOp uint8

const (
	SyncLFNCEWAIT  SyncOp = 0x1
	SyncLFNCEMARK  SyncOp = 0x2
	SyncLFNCEWTMRK SyncOp = 0x3
	SyncSYNCFULL   SyncOp = 0x4
	SyncSYNCWAIT   SyncOp = 0x5
	SyncSYNCMARK   SyncOp = 0x6
	SyncSYNCWTMRK  SyncOp = 0x7
)

var syncNames = [...]string{"", "LFNCEWAIT", "LFNCEMARK", "LFNCEWTMRK",
	"SYNCFULL", "SYNCWAIT", "SYNCMARK", "SYNCWTMRK"}

func (s SyncOp) String() string {
	if int(s) < len(syncNames) && s != 0 {
		return syncNames[s]
	}
	return fmt.Sprintf("SYNC%#x", uint8(s))
}

// SeqPart is an operation attached to one uop index of a triad.
type SeqPart[T any] struct {
	Index int // uop index within the triad, in [0, 2]
	Value T
}

// SeqWord is a decoded sequence word: up to one control operation, one
// synchronization operation and one jump, each attached to a uop index
// of the triad. The zero value is the empty sequence word.
type SeqWord struct {
	control optPart[ControlOp]
	sync    optPart[SyncOp]
	jump    optPart[Addr]
}

type optPart[T any] struct {
	ok  bool
	idx int
	val T
}

func checkUopIndex(idx int) {
	if idx < 0 || idx > 2 {
		panic(fmt.Sprintf("uop index %d out of range [0, 2]", idx))
	}
}

// Control returns the control operation, if any.
func (w SeqWord) Control() (SeqPart[ControlOp], bool) {
	return SeqPart[ControlOp]{w.control.idx, w.control.val}, w.control.ok
}

// Sync returns the synchronization operation, if any.
func (w SeqWord) Sync() (SeqPart[SyncOp], bool) {
	return SeqPart[SyncOp]{w.sync.idx, w.sync.val}, w.sync.ok
}

// Goto returns the jump, if any.
func (w SeqWord) Goto() (SeqPart[Addr], bool) {
	return SeqPart[Addr]{w.jump.idx, w.jump.val}, w.jump.ok
}

// Empty reports whether the word carries no operations.
func (w SeqWord) Empty() bool {
	return !w.control.ok && !w.sync.ok && !w.jump.ok
}

// SetControl attaches a control operation at the given uop index.
func (w *SeqWord) SetControl(idx int, op ControlOp) *SeqWord {
	checkUopIndex(idx)
	if !op.valid() {
		panic(fmt.Sprintf("invalid control op %v", op))
	}
	w.control = optPart[ControlOp]{true, idx, op}
	return w
}

// SetSync attaches a synchronization operation at the given uop index.
func (w *SeqWord) SetSync(idx int, op SyncOp) *SeqWord {
	checkUopIndex(idx)
	if op < SyncLFNCEWAIT || op > SyncSYNCWTMRK {
		panic(fmt.Sprintf("invalid sync op %v", op))
	}
	w.sync = optPart[SyncOp]{true, idx, op}
	return w
}

// SetGoto attaches a jump to target at the given uop index.
func (w *SeqWord) SetGoto(idx int, target Addr) *SeqWord {
	checkUopIndex(idx)
	if target == 0 {
		panic("goto target 0 is not encodable")
	}
	w.jump = optPart[Addr]{true, idx, target}
	return w
}

// ClearControl drops the control operation.
func (w *SeqWord) ClearControl() { w.control.ok = false }

// ClearSync drops the synchronization operation.
func (w *SeqWord) ClearSync() { w.sync.ok = false }

// ClearGoto drops the jump.
func (w *SeqWord) ClearGoto() { w.jump.ok = false }

// Window restricts the word to operations on uop indexes
// [base, base+n) and rebases them to start at 0. Operations outside of
// the window are dropped.
func (w SeqWord) Window(base, n int) SeqWord {
	var out SeqWord
	keep := func(idx int) bool { return idx >= base && idx < base+n }
	if w.control.ok && keep(w.control.idx) {
		out.control = optPart[ControlOp]{true, w.control.idx - base, w.control.val}
	}
	if w.sync.ok && keep(w.sync.idx) {
		out.sync = optPart[SyncOp]{true, w.sync.idx - base, w.sync.val}
	}
	if w.jump.ok && keep(w.jump.idx) {
		out.jump = optPart[Addr]{true, w.jump.idx - base, w.jump.val}
	}
	return out
}

// Shift moves every operation by delta uop indexes, dropping
// operations that leave [0, 2].
func (w SeqWord) Shift(delta int) SeqWord {
	var out SeqWord
	keep := func(idx int) bool { return idx >= 0 && idx <= 2 }
	if w.control.ok && keep(w.control.idx+delta) {
		out.control = optPart[ControlOp]{true, w.control.idx + delta, w.control.val}
	}
	if w.sync.ok && keep(w.sync.idx+delta) {
		out.sync = optPart[SyncOp]{true, w.sync.idx + delta, w.sync.val}
	}
	if w.jump.ok && keep(w.jump.idx+delta) {
		out.jump = optPart[Addr]{true, w.jump.idx + delta, w.jump.val}
	}
	return out
}

const (
	seqWordMask     = 0x3fffffff
	seqWordCRCShift = 28
	absentIndex     = 3
)

// Errors returned when parsing or assembling sequence words.
var (
	ErrSeqWordCRC      = errors.New("sequence word parity mismatch")
	ErrGotoAddress     = errors.New("invalid goto address")
	ErrGotoIndex       = errors.New("invalid goto uop index")
	ErrSyncIndex       = errors.New("invalid sync uop index")
	ErrControlIndex    = errors.New("invalid control uop index")
	ErrControlValue    = errors.New("invalid control value")
	ErrSeqWordConflict = errors.New("terminator and goto on the same uop index")
)

func (w SeqWord) validate() error {
	if w.control.ok && w.jump.ok && w.control.idx == w.jump.idx &&
		w.control.val.IsTerminator() {
		return fmt.Errorf("%w: %v and goto %v at index %d",
			ErrSeqWordConflict, w.control.val, w.jump.val, w.jump.idx)
	}
	return nil
}

// Assemble encodes the word, including the 2-bit parity code at
// bits 28-29.
func (w SeqWord) Assemble() (uint32, error) {
	raw, err := w.assembleNoCRC()
	if err != nil {
		return 0, err
	}
	return raw | uint32(evenOddParity(uint64(raw)))<<seqWordCRCShift, nil
}

func (w SeqWord) assembleNoCRC() (uint32, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}
	var syncCtrl, syncIdx uint32 = 0, absentIndex
	if w.sync.ok {
		syncCtrl, syncIdx = uint32(w.sync.val), uint32(w.sync.idx)
	}
	var addr, gotoIdx uint32 = 0, absentIndex
	if w.jump.ok {
		addr, gotoIdx = uint32(w.jump.val), uint32(w.jump.idx)
	}
	var ctrl, ctrlIdx uint32
	if w.control.ok {
		ctrl, ctrlIdx = uint32(w.control.val), uint32(w.control.idx)
	}
	return syncCtrl<<25 | syncIdx<<23 | (addr&0x7fff)<<8 | gotoIdx<<6 | ctrl<<2 | ctrlIdx, nil
}

// ParseSeqWord decodes a raw sequence word, verifying the parity code.
func ParseSeqWord(raw uint32) (SeqWord, error) {
	if got, want := raw>>seqWordCRCShift&3, uint32(evenOddParity(uint64(raw&(seqWordMask>>2)))); got != want {
		return SeqWord{}, fmt.Errorf("%w: word %#x has %#x, want %#x", ErrSeqWordCRC, raw, got, want)
	}
	return ParseSeqWordNoCRC(raw)
}

// ParseSeqWordNoCRC decodes a raw sequence word without checking the
// parity code. Reference images store sequence words with the code
// already stripped.
func ParseSeqWordNoCRC(raw uint32) (SeqWord, error) {
	var w SeqWord
	if addr := raw >> 8 & 0x7fff; addr != 0 {
		if addr >= uint32(AddrSpaceEnd) {
			return SeqWord{}, fmt.Errorf("%w: %#x in word %#x", ErrGotoAddress, addr, raw)
		}
		idx := int(raw >> 6 & 3)
		if idx == absentIndex {
			return SeqWord{}, fmt.Errorf("%w: %d in word %#x", ErrGotoIndex, idx, raw)
		}
		w.jump = optPart[Addr]{true, idx, Addr(addr)}
	}
	if syncCtrl := SyncOp(raw >> 25 & 7); syncCtrl != 0 {
		idx := int(raw >> 23 & 3)
		if idx == absentIndex {
			return SeqWord{}, fmt.Errorf("%w: %v without uop index in word %#x", ErrSyncIndex, syncCtrl, raw)
		}
		w.sync = optPart[SyncOp]{true, idx, syncCtrl}
	}
	ctrl, ctrlIdx := ControlOp(raw>>2&0xf), int(raw&3)
	if ctrl != 0 || ctrlIdx != 0 {
		if ctrlIdx == absentIndex {
			return SeqWord{}, fmt.Errorf("%w: %d in word %#x", ErrControlIndex, ctrlIdx, raw)
		}
		if !ctrl.valid() {
			return SeqWord{}, fmt.Errorf("%w: %#x in word %#x", ErrControlValue, uint8(ctrl), raw)
		}
		w.control = optPart[ControlOp]{true, ctrlIdx, ctrl}
	}
	if err := w.validate(); err != nil {
		return SeqWord{}, err
	}
	return w, nil
}

func (w SeqWord) String() string {
	if w.Empty() {
		return "SEQ{}"
	}
	var parts []string
	if w.control.ok {
		parts = append(parts, fmt.Sprintf("%v@%d", w.control.val, w.control.idx))
	}
	if w.sync.ok {
		parts = append(parts, fmt.Sprintf("%v@%d", w.sync.val, w.sync.idx))
	}
	if w.jump.ok {
		parts = append(parts, fmt.Sprintf("GOTO %v@%d", w.jump.val, w.jump.idx))
	}
	return "SEQ{" + strings.Join(parts, ", ") + "}"
}
