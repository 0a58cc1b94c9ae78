// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to the standard log
// package with verbosity levels, a global verbosity setting shared by
// all packages, and optional in-memory caching of recent output.
package log

import (
	"flag"
	"fmt"
	golog "log"
	"strings"
	"sync"
	"time"
)

var (
	flagV = flag.Int("vv", 0, "verbosity")

	mu    sync.Mutex
	cache *logCache

	prependTime = true // for testing
)

type logCache struct {
	entries []string
	pos     int
	mem     int
	maxMem  int
}

// EnableLogCaching enables in-memory caching of log output at
// verbosity <= 1. Caches up to maxLines lines, but no more than maxMem
// bytes. Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	mu.Lock()
	defer mu.Unlock()
	if cache != nil {
		Fatalf("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	cache = &logCache{
		entries: make([]string, maxLines),
		maxMem:  maxMem,
	}
}

// CachedLogOutput retrieves cached log output.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	if cache == nil {
		return ""
	}
	buf := new(strings.Builder)
	for i := range cache.entries {
		pos := (cache.pos + i) % len(cache.entries)
		if cache.entries[pos] == "" {
			continue
		}
		buf.WriteString(cache.entries[pos])
		buf.WriteByte('\n')
	}
	return buf.String()
}

func Logf(v int, msg string, args ...interface{}) {
	mu.Lock()
	doLog := v <= *flagV
	if cache != nil && v <= 1 {
		cache.add(msg, args...)
	}
	mu.Unlock()

	if doLog {
		golog.Printf(msg, args...)
	}
}

func (c *logCache) add(msg string, args ...interface{}) {
	c.mem -= len(c.entries[c.pos])
	if c.mem < 0 {
		panic("log cache size underflow")
	}
	timeStr := ""
	if prependTime {
		timeStr = time.Now().Format("2006/01/02 15:04:05 ")
	}
	c.entries[c.pos] = fmt.Sprintf(timeStr+msg, args...)
	c.mem += len(c.entries[c.pos])
	c.pos = (c.pos + 1) % len(c.entries)
	for i := 0; i < len(c.entries)-1 && c.mem > c.maxMem; i++ {
		pos := (c.pos + i) % len(c.entries)
		c.mem -= len(c.entries[pos])
		c.entries[pos] = ""
	}
	if c.mem < 0 {
		panic("log cache size underflow")
	}
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}

type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
