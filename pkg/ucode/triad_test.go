// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPatch(t *testing.T) {
	triads := []Triad{
		{Instructions: [3]Instruction{NOP, NOP, UJMP(0x429)}},
		{SeqWord: *new(SeqWord).SetControl(0, CtlUEND0)},
	}
	p, err := NewPatch(0x7c00, triads)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, Addr(0x7c00), p.Addr())
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, Addr(0x7c08), p.End())

	_, err = NewPatch(0x428, triads)
	assert.Error(t, err, "load address outside patch RAM")
	_, err = NewPatch(0x7c02, triads)
	assert.Error(t, err, "unaligned load address")
	_, err = NewPatch(0x7dfc, triads)
	assert.Error(t, err, "patch overflows the address space")

	bad := []Triad{{SeqWord: *new(SeqWord).SetControl(1, CtlUEND0).SetGoto(1, 0x100)}}
	_, err = NewPatch(0x7c00, bad)
	assert.Error(t, err, "conflicting sequence word")
}
