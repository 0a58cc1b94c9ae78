// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/ucode"
)

// MismatchError reports a stimulus whose result changed once hooks
// were armed: the batch is not semantics preserving for it.
type MismatchError[R comparable] struct {
	Hooked   R
	Unhooked R
	Hits     []HitResult
}

func (e *MismatchError[R]) Error() string {
	return fmt.Sprintf("stimulus result changed under instrumentation: %v armed, %v retired",
		e.Hooked, e.Unhooked)
}

// Validate runs the stimulus once with the hooks armed and once more
// with every hook retired, and compares the two results. On mismatch
// the hooked result and its per-hook outcomes come back inside the
// error for triage. The stimulus must be repeatable for the comparison
// to mean anything.
func Validate[R comparable](c *Coverage, hooks []ucode.Addr, stimulus func() R) (R, []HitResult, error) {
	hooked, hits, err := Execute(c, hooks, stimulus)
	if err != nil {
		return hooked, nil, err
	}
	unhooked, _, err := Execute(c, nil, stimulus)
	if err != nil {
		return hooked, nil, err
	}
	if hooked != unhooked {
		return hooked, hits, &MismatchError[R]{Hooked: hooked, Unhooked: unhooked, Hits: hits}
	}
	return hooked, hits, nil
}
