// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package blacklist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/ucov-project/ucov/pkg/ucode"
)

func TestParse(t *testing.T) {
	data := `
# known bad
0x8e
0xd0 # both partners listed anyway
0xd1
0x3c8-0x3ca
`
	s, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	want := New(0x8e, 0xd0, 0xd1, 0x3c8, 0x3c9, 0x3ca)
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(want, ForModel(0x506ca)); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseErrors(t *testing.T) {
	for _, data := range []string{
		"nonsense",
		"0x10000",
		"0x200-0x100",
		"0x100-",
	} {
		_, err := Parse([]byte(data))
		assert.Error(t, err, "input %q", data)
	}
}

func TestAllow(t *testing.T) {
	s := New(0xd1, 0x3c8)
	tests := []struct {
		addr  ucode.Addr
		allow bool
	}{
		{0xd0, false}, // odd partner is listed
		{0xd1, false},
		{0xd2, true},
		{0x3c8, false},
		{0x3c9, false}, // even partner is listed
		{0x3ca, true},
		{0x100, true},
	}
	for _, test := range tests {
		assert.Equal(t, test.allow, s.Allow(test.addr), "addr %v", test.addr)
	}
}

func TestMerge(t *testing.T) {
	s := ForModel(0x506ca)
	s.Merge(New(0x1000))
	assert.False(t, s.Allow(0x1000))
	assert.False(t, s.Allow(0xd0))
	assert.True(t, ForModel(0).Allow(0x1000))
}
