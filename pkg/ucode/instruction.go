// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import "fmt"

// Instruction is a single micro-instruction word. The low 48 bits carry
// the payload, bits 46-47 of the payload feed into a 2-bit even/odd
// parity code stored at bits 46-47 of the assembled word.
type Instruction uint64

const (
	instrPayloadMask = 0x3fffffffffff
	instrCRCShift    = 46
)

// evenOddParity folds v into a 2-bit code: bit 0 is the parity of the
// even bits, bit 1 the parity of the odd bits.
func evenOddParity(v uint64) uint64 {
	var p uint64
	for ; v != 0; v >>= 2 {
		p ^= v & 3
	}
	return p
}

// MakeInstruction assembles an instruction word from a raw payload,
// recomputing the parity bits.
func MakeInstruction(payload uint64) Instruction {
	payload &= instrPayloadMask
	return Instruction(payload | evenOddParity(payload)<<instrCRCShift)
}

// ParseInstruction validates the parity of a raw word read back from
// the sequencer and strips nothing: the returned Instruction compares
// equal to what MakeInstruction would produce for the same payload.
func ParseInstruction(raw uint64) (Instruction, error) {
	got := raw >> instrCRCShift & 3
	want := evenOddParity(raw & instrPayloadMask)
	if got != want {
		return 0, fmt.Errorf("instruction %#x: bad parity %#x, want %#x", raw, got, want)
	}
	return Instruction(raw), nil
}

// Payload returns the 48-bit payload without the parity bits.
func (in Instruction) Payload() uint64 {
	return uint64(in) & instrPayloadMask
}

// Opcode extracts the 12-bit operation code.
func (in Instruction) Opcode() Opcode {
	return Opcode(in >> 32 & 0xfff)
}

func (in Instruction) String() string {
	return fmt.Sprintf("%03x[%012x]", uint16(in.Opcode()), in.Payload())
}

// NOP is the canonical no-operation instruction.
var NOP = MakeInstruction(uint64(OpNOP) << 32)

// encodeImmSrc1 scatters a 14-bit immediate into the source operand
// field layout used by jump instructions.
func encodeImmSrc1(imm uint32) uint64 {
	v := uint64(imm&0xff)<<24 | uint64(imm&0x1f00)<<10 | uint64(imm&0xe000)>>7 | 1<<9
	return v
}

// UJMP builds an unconditional jump to the given address.
func UJMP(target Addr) Instruction {
	return MakeInstruction(uint64(OpUJMP)<<32 | encodeImmSrc1(uint32(target)))
}
