// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSeqWordKnownEncoding(t *testing.T) {
	var w SeqWord
	w.SetGoto(0, 0x429)
	raw, err := w.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint32(0x31842900), raw)
}

func TestSeqWordKnownDecoding(t *testing.T) {
	w, err := ParseSeqWordNoCRC(0x0199c980)
	if err != nil {
		t.Fatal(err)
	}
	jump, ok := w.Goto()
	if !ok {
		t.Fatalf("no goto in %v", w)
	}
	assert.Equal(t, SeqPart[Addr]{Index: 2, Value: 0x19c9}, jump)
	_, ok = w.Control()
	assert.False(t, ok)
	_, ok = w.Sync()
	assert.False(t, ok)
}

func TestSeqWordRoundTrip(t *testing.T) {
	words := []SeqWord{
		{},
		*new(SeqWord).SetGoto(1, 0x19c9),
		*new(SeqWord).SetControl(2, CtlUEND0),
		*new(SeqWord).SetSync(0, SyncLFNCEWAIT),
		*new(SeqWord).SetControl(0, CtlSAVEUPIP0).SetGoto(1, 0x100),
		*new(SeqWord).SetControl(1, CtlURET0).SetSync(2, SyncSYNCFULL).SetGoto(0, 0x7bfc),
	}
	for _, w := range words {
		raw, err := w.Assemble()
		if err != nil {
			t.Fatalf("assemble %v: %v", w, err)
		}
		back, err := ParseSeqWord(raw)
		if err != nil {
			t.Fatalf("parse %#x (%v): %v", raw, w, err)
		}
		if diff := cmp.Diff(w, back, cmp.AllowUnexported(SeqWord{}, optPart[ControlOp]{},
			optPart[SyncOp]{}, optPart[Addr]{})); diff != "" {
			t.Fatalf("round trip of %v:\n%v", w, diff)
		}
	}
}

func TestSeqWordParseErrors(t *testing.T) {
	tests := []struct {
		raw uint32
		err error
	}{
		// Goto address past the end of the address space.
		{0x7f00 << 8, ErrGotoAddress},
		// Goto with uop index 3.
		{0x19c9<<8 | 3<<6, ErrGotoIndex},
		// Sync operation without a uop index.
		{1<<25 | 3<<23, ErrSyncIndex},
		// Control with uop index 3.
		{uint32(CtlUEND0)<<2 | 3, ErrControlIndex},
		// Control values 0x0, 0x1 and 0xa do not decode.
		{0x1<<2 | 1, ErrControlValue},
		{0xa<<2 | 1, ErrControlValue},
		// Terminator and goto on the same uop index.
		{uint32(CtlUEND0)<<2 | 1 | 0x19c9<<8 | 1<<6, ErrSeqWordConflict},
	}
	for _, test := range tests {
		_, err := ParseSeqWordNoCRC(test.raw)
		if !errors.Is(err, test.err) {
			t.Errorf("parse %#x: got %v, want %v", test.raw, err, test.err)
		}
	}
}

func TestSeqWordCRC(t *testing.T) {
	raw, err := new(SeqWord).SetGoto(0, 0x429).Assemble()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSeqWord(raw ^ 1<<28); !errors.Is(err, ErrSeqWordCRC) {
		t.Fatalf("got %v, want parity mismatch", err)
	}
}

func TestSeqWordWindow(t *testing.T) {
	w := *new(SeqWord).SetControl(2, CtlUEND0).SetSync(0, SyncLFNCEWAIT).SetGoto(1, 0x100)
	win := w.Window(1, 2)
	_, ok := win.Sync()
	assert.False(t, ok, "sync at index 0 is outside the window")
	jump, ok := win.Goto()
	assert.True(t, ok)
	assert.Equal(t, SeqPart[Addr]{Index: 0, Value: 0x100}, jump)
	ctl, ok := win.Control()
	assert.True(t, ok)
	assert.Equal(t, SeqPart[ControlOp]{Index: 1, Value: CtlUEND0}, ctl)
}

func TestSeqWordShift(t *testing.T) {
	w := *new(SeqWord).SetControl(2, CtlUEND0).SetGoto(0, 0x100)
	s := w.Shift(1)
	_, ok := s.Control()
	assert.False(t, ok, "control shifted past index 2 is dropped")
	jump, ok := s.Goto()
	assert.True(t, ok)
	assert.Equal(t, 1, jump.Index)
	assert.True(t, w.Shift(-1).Empty() == false)
	_, ok = w.Shift(-1).Goto()
	assert.False(t, ok, "goto shifted below index 0 is dropped")
}

func TestSeqWordSetPanics(t *testing.T) {
	var w SeqWord
	assert.Panics(t, func() { w.SetControl(3, CtlUEND0) })
	assert.Panics(t, func() { w.SetControl(0, ControlOp(0xa)) })
	assert.Panics(t, func() { w.SetGoto(0, 0) })
	assert.Panics(t, func() { w.SetSync(0, SyncOp(8)) })
}
