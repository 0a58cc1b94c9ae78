// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ucov-project/ucov/pkg/testutil"
)

func TestInstructionRoundTrip(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	for i := 0; i < testutil.IterCount(); i++ {
		payload := r.Uint64() & instrPayloadMask
		in := MakeInstruction(payload)
		assert.Equal(t, payload, in.Payload())
		back, err := ParseInstruction(uint64(in))
		if err != nil {
			t.Fatalf("reparse of %v: %v", in, err)
		}
		assert.Equal(t, in, back)
	}
}

func TestInstructionBadParity(t *testing.T) {
	in := MakeInstruction(0x123456789ab)
	_, err := ParseInstruction(uint64(in) ^ 1<<instrCRCShift)
	assert.Error(t, err)
	// Flipping a payload bit invalidates the code as well.
	_, err = ParseInstruction(uint64(in) ^ 1<<17)
	assert.Error(t, err)
}

func TestOpcode(t *testing.T) {
	in := MakeInstruction(uint64(0x4c8)<<32 | 0xdeadbeef)
	assert.Equal(t, OpUJMP, in.Opcode())
	assert.Equal(t, OpNOP, NOP.Opcode())
}

func TestUJMP(t *testing.T) {
	in := UJMP(0x429)
	assert.Equal(t, OpUJMP, in.Opcode())
	// The immediate operand is scattered over the source field.
	want := uint64(0x29)<<24 | uint64(0x400)<<10 | 1<<9
	assert.Equal(t, uint64(OpUJMP)<<32|want, in.Payload())
}
