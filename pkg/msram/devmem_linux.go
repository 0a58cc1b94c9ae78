// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package msram

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapRegion maps a physical memory window through /dev/mem. The
// microcode side writes the same window through its own address
// translation, so every access is fenced.
type MmapRegion struct {
	mapping []byte
	mem     []byte
}

// MapRegion maps size bytes of physical memory starting at base.
func MapRegion(base uint64, size int) (*MmapRegion, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/mem: %w", err)
	}
	defer f.Close()
	page := uint64(unix.Getpagesize())
	pageBase := base &^ (page - 1)
	pageOff := int(base - pageBase)
	mapping, err := unix.Mmap(int(f.Fd()), int64(pageBase), pageOff+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map %#x: %w", base, err)
	}
	return &MmapRegion{
		mapping: mapping,
		mem:     mapping[pageOff : pageOff+size],
	}, nil
}

func (r *MmapRegion) Read16(word int) uint16 {
	if word < 0 || 2*word+2 > len(r.mem) {
		return 0
	}
	lmfence()
	return binary.LittleEndian.Uint16(r.mem[2*word:])
}

func (r *MmapRegion) Write16(word int, v uint16) {
	if word < 0 || 2*word+2 > len(r.mem) {
		return
	}
	binary.LittleEndian.PutUint16(r.mem[2*word:], v)
	lmfence()
}

func (r *MmapRegion) Words() int { return len(r.mem) / 2 }

// Close unmaps the window.
func (r *MmapRegion) Close() error {
	return unix.Munmap(r.mapping)
}
