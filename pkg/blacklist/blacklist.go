// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package blacklist tracks micro-addresses that must never be hooked:
// addresses that hang or corrupt the part when redirected, found the
// hard way. Built-in lists exist for known models; sweep configs can
// add their own.
package blacklist

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ucov-project/ucov/pkg/ucode"
)

// Set is a set of blacklisted addresses.
type Set map[ucode.Addr]bool

// New builds a set from addresses.
func New(addrs ...ucode.Addr) Set {
	s := make(Set, len(addrs))
	for _, a := range addrs {
		s[a] = true
	}
	return s
}

// Merge adds all addresses of other.
func (s Set) Merge(other Set) {
	for a := range other {
		s[a] = true
	}
}

// Allow reports whether the even-aligned address pair at a is free of
// blacklisted addresses. Hooks trigger on both partners, so one
// blacklisted partner poisons the pair.
func (s Set) Allow(a ucode.Addr) bool {
	even := a.AlignEven()
	return !s[even] && !s[even+1]
}

// ForModel returns the built-in blacklist of a CPU model.
func ForModel(model uint32) Set {
	switch model {
	case 0x506ca:
		return New(0x8e, 0xd0, 0xd1, 0x3c8, 0x3c9, 0x3ca)
	}
	return New()
}

// Parse reads a blacklist: one address or inclusive range per line,
// # starts a comment.
func Parse(data []byte) (Set, error) {
	s := New()
	for i, line := range strings.Split(string(data), "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		from, to, found := strings.Cut(line, "-")
		if !found {
			to = from
		}
		first, err := parseAddr(from)
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", i+1, err)
		}
		last, err := parseAddr(to)
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", i+1, err)
		}
		if last < first {
			return nil, fmt.Errorf("line %v: empty range %v-%v", i+1, first, last)
		}
		for a := first; a <= last; a++ {
			s[a] = true
		}
	}
	return s, nil
}

func parseAddr(str string) (ucode.Addr, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(str), 0, 16)
	if err != nil || v >= uint64(ucode.AddrSpaceEnd) {
		return 0, fmt.Errorf("bad micro-address %q", str)
	}
	return ucode.Addr(v), nil
}

// LoadFile reads a blacklist file.
func LoadFile(filename string) (Set, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read blacklist: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return s, nil
}
