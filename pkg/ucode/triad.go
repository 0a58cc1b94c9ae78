// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ucode

import "fmt"

// Triad is the unit the sequencer fetches: three instructions plus the
// sequence word that steers them.
type Triad struct {
	Instructions [3]Instruction
	SeqWord      SeqWord
}

// Assemble encodes the triad into raw instruction and sequence words.
func (t Triad) Assemble() (instrs [3]uint64, seqw uint32, err error) {
	for i, in := range t.Instructions {
		instrs[i] = uint64(in)
	}
	seqw, err = t.SeqWord.Assemble()
	return instrs, seqw, err
}

// Patch is a sequence of triads to be loaded into patch RAM at a fixed
// address.
type Patch struct {
	addr   Addr
	triads []Triad
}

// NewPatch validates and builds a patch. The load address must be
// triad aligned and lie in patch RAM, the body must fit before the end
// of the address space, and every sequence word must assemble.
func NewPatch(addr Addr, triads []Triad) (*Patch, error) {
	if !addr.InMSRAM() {
		return nil, fmt.Errorf("patch address %v is not in patch RAM", addr)
	}
	if addr%4 != 0 {
		return nil, fmt.Errorf("patch address %v is not triad aligned", addr)
	}
	if end := int(addr) + 4*len(triads); end > int(AddrSpaceEnd) {
		return nil, fmt.Errorf("patch of %d triads at %v overflows patch RAM", len(triads), addr)
	}
	for i, t := range triads {
		if _, _, err := t.Assemble(); err != nil {
			return nil, fmt.Errorf("triad %d at %v: %w", i, addr.Add(4*i), err)
		}
	}
	return &Patch{addr: addr, triads: triads}, nil
}

// Addr returns the load address.
func (p *Patch) Addr() Addr { return p.addr }

// Len returns the number of triads.
func (p *Patch) Len() int { return len(p.triads) }

// Triad returns the i-th triad.
func (p *Patch) Triad(i int) Triad { return p.triads[i] }

// End returns one past the last address the patch occupies. It may
// equal AddrSpaceEnd for a patch that fills patch RAM completely.
func (p *Patch) End() Addr { return p.addr + Addr(4*len(p.triads)) }
