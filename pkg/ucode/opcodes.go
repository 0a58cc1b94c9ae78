// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

// Opcode is the 12-bit operation code of an instruction. The map of
// opcodes is only partially recovered; code that needs to classify
// opcodes takes the classification table as input rather than
// hard-coding it (see the modification engine).
type Opcode uint16

const (
	OpNOP  Opcode = 0x000
	OpUJMP Opcode = 0x4c8
	// OpSAVEUIPRegOvr saves the micro-return address through the
	// register override path. Instructions with this opcode interact
	// with sequence word save controls and get special treatment
	// during hookability analysis.
	OpSAVEUIPRegOvr Opcode = 0x022
)
