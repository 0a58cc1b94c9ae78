// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// ucov-romstats analyzes a ROM dump and prints how many micro-addresses
// are hookable under a given set of restriction flags, with a breakdown
// of why the rest are rejected. Useful for tuning flags before a sweep:
//
//	ucov-romstats -rom glm-b0.dump.xz -flags no_gotos,no_subr
package main

import (
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/ucov-project/ucov/pkg/modeng"
	"github.com/ucov-project/ucov/pkg/romdump"
	"github.com/ucov-project/ucov/pkg/tool"
	"github.com/ucov-project/ucov/pkg/ucode"
)

func main() {
	var (
		flagROM   = flag.String("rom", "", "ROM dump file")
		flagFlags = flag.String("flags", "", "comma-separated restriction flags")
	)
	defer tool.Init()()

	dump, err := romdump.LoadFile(*flagROM)
	if err != nil {
		tool.Fail(err)
	}
	settings := modeng.DefaultSettings()
	if *flagFlags != "" {
		flags, err := modeng.ParseFlags(strings.Split(*flagFlags, ","))
		if err != nil {
			tool.Fail(err)
		}
		settings.Flags |= flags
	}
	engine := modeng.New(dump, settings)

	hookable, total := 0, 0
	rejected := make(map[string]int)
	for a := ucode.Addr(0); a < ucode.ROMSize; a += 2 {
		total++
		err := engine.IsHookable(a)
		if err == nil {
			hookable++
			continue
		}
		var nh *modeng.NotHookableError
		if !errors.As(err, &nh) {
			tool.Fail(err)
		}
		key := nh.Reason.String()
		if nh.Flag != 0 {
			key = nh.Flag.String()
		}
		rejected[key]++
	}

	fmt.Printf("model:    %#x\n", dump.Model())
	fmt.Printf("triads:   %v\n", dump.Triads())
	fmt.Printf("hookable: %v/%v (%.1f%%)\n", hookable, total,
		100*float64(hookable)/float64(total))
	keys := make([]string, 0, len(rejected))
	for key := range rejected {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return rejected[keys[i]] > rejected[keys[j]]
	})
	for _, key := range keys {
		fmt.Printf("%8v  %v\n", rejected[key], key)
	}
}
