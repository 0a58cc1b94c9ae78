// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"strings"
	"testing"
)

func init() {
	EnableLogCaching(3, 30)
	prependTime = false
}

func TestCaching(t *testing.T) {
	tests := []struct{ str, want string }{
		{"arming hooks", "arming hooks\n"},
		{"fence", "arming hooks\nfence\n"},
		{"readback", "arming hooks\nfence\nreadback\n"},
		// Line capacity reached, oldest entry rotates out.
		{"disarm", "fence\nreadback\ndisarm\n"},
		// A line exceeding the byte budget evicts everything else.
		{"chunk 17 of 248: 30 hooks armed", "chunk 17 of 248: 30 hooks armed\n"},
	}
	for _, test := range tests {
		Logf(1, "%v", test.str)
		if out := CachedLogOutput(); out != test.want {
			t.Fatalf("wrote: %v\nwant: %v\ngot: %v", test.str, test.want, out)
		}
	}
}

func TestCacheVerbosity(t *testing.T) {
	Logf(1, "low")
	Logf(2, "this trace line must not be cached")
	if out := CachedLogOutput(); strings.Contains(out, "trace") {
		t.Fatalf("verbose output leaked into the cache: %v", out)
	}
}

func TestVerboseWriter(t *testing.T) {
	n, err := VerboseWriter(1).Write([]byte("device trace"))
	if err != nil || n != len("device trace") {
		t.Fatalf("write returned %v, %v", n, err)
	}
	if out := CachedLogOutput(); !strings.Contains(out, "device trace") {
		t.Fatalf("writer output missing from the cache: %v", out)
	}
}
