// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hookable

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ucov-project/ucov/pkg/modeng"
	"github.com/ucov-project/ucov/pkg/romdump"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// fullDump builds an all-NOP image covering the whole read-only area;
// every even address of such an image is hookable.
func fullDump(t *testing.T) *romdump.Dump {
	triads := int(ucode.ROMSize) / 4
	d, err := romdump.New(0x506ca, make([]uint64, 3*triads), make([]uint32, triads))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// subrDump is like fullDump, but the triads of the first n addresses
// start with a subroutine call.
func subrDump(t *testing.T, n int) *romdump.Dump {
	triads := int(ucode.ROMSize) / 4
	instrs := make([]uint64, 3*triads)
	for i := 0; i < n/4+1; i++ {
		for j := 0; j < 3; j++ {
			instrs[3*i+j] = uint64(0x448) << 32
		}
	}
	d, err := romdump.New(0x506ca, instrs, make([]uint32, triads))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFullSet(t *testing.T) {
	e := modeng.New(fullDump(t), nil)
	set := Build(e, 16, nil)
	// Every even ROM address is hookable.
	assert.Equal(t, int(ucode.ROMSize)/2, set.Len())
	assert.False(t, set.Empty())
	assert.Equal(t, 16, set.ChunkSize())
	assert.Equal(t, (set.Len()+15)/16, set.NumChunks())

	// The reorder permutes, it does not add or drop.
	sorted := append([]ucode.Addr{}, set.Addresses()...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, a := range sorted {
		if a != ucode.Addr(2*i) {
			t.Fatalf("address %v missing or duplicated around %v", ucode.Addr(2*i), a)
		}
	}

	// Chunks concatenate back to the full sweep order.
	var concat []ucode.Addr
	for i := 0; i < set.NumChunks(); i++ {
		concat = append(concat, set.Chunk(i)...)
	}
	assert.Equal(t, set.Addresses(), concat)
}

func TestChunkSpread(t *testing.T) {
	e := modeng.New(fullDump(t), nil)
	// The transpose keeps neighboring addresses out of the same chunk
	// as long as the address count is at least chunkSize^2.
	for _, chunkSize := range []int{1, 16, 100} {
		set := Build(e, chunkSize, nil)
		for i := 0; i < set.NumChunks(); i++ {
			chunk := set.Chunk(i)
			seen := make(map[ucode.Addr]bool, len(chunk))
			for _, a := range chunk {
				seen[a] = true
			}
			for _, a := range chunk {
				if seen[a+2] {
					t.Fatalf("chunk size %v: neighbors %v and %v share chunk %v",
						chunkSize, a, a+2, i)
				}
			}
		}
	}
}

func TestOversizedChunk(t *testing.T) {
	// With a chunk size beyond sqrt(count) full spreading is
	// impossible, but the reorder must still be a permutation.
	e := modeng.New(fullDump(t), nil)
	set := Build(e, 0x2000, nil)
	assert.Equal(t, int(ucode.ROMSize)/2, set.Len())
	assert.Equal(t, 2, set.NumChunks())
	sorted := append([]ucode.Addr{}, set.Addresses()...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, a := range sorted {
		if a != ucode.Addr(2*i) {
			t.Fatalf("address %v missing or duplicated around %v", ucode.Addr(2*i), a)
		}
	}
}

func TestClosure(t *testing.T) {
	// Everything the set returns is accepted by the engine, for both
	// partners of the pair.
	e := modeng.New(subrDump(t, 0x100), &modeng.Settings{
		Flags:  modeng.NoSUBR,
		Policy: modeng.GoldmontPolicy(),
	})
	set := Build(e, 16, nil)
	assert.Less(t, set.Len(), int(ucode.ROMSize)/2)
	for _, a := range set.Addresses() {
		assert.NoError(t, e.IsHookable(a), "%v", a)
		assert.NoError(t, e.IsHookable(a+1), "%v", a+1)
		if a < 0x100 {
			t.Fatalf("%v slipped through the subroutine filter", a)
		}
	}
}

func TestFilter(t *testing.T) {
	e := modeng.New(fullDump(t), nil)
	blocked := map[ucode.Addr]bool{0x100: true, 0x428: true}
	set := Build(e, 16, func(a ucode.Addr) bool { return !blocked[a] })
	assert.Equal(t, int(ucode.ROMSize)/2-2, set.Len())
	for _, a := range set.Addresses() {
		if blocked[a] {
			t.Fatalf("%v is filtered out but present", a)
		}
	}
}

func TestBadChunkSize(t *testing.T) {
	e := modeng.New(fullDump(t), nil)
	assert.Panics(t, func() { Build(e, 0, nil) })
}
