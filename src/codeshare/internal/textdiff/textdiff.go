// Package textdiff computes the character-level edit script attached to
// patch messages.
package textdiff

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codeshare/codeshare/src/codeshare/wire"
)

// Ops returns the ordered edit script transforming old into new. Applying
// the script in order, keeping "unchanged" and "added" text and skipping
// "removed" text, reconstructs new exactly.
//
// The script is deterministic for a given input pair and is never an
// error: identical strings produce a single unchanged run, and an empty
// old side produces a single added run.
func Ops(old, new string) []wire.Diff {
	if old == new {
		if old == "" {
			return nil
		}
		return []wire.Diff{{Op: wire.DiffUnchanged, Text: old}}
	}

	dmp := diffmatchpatch.New()
	// No deadline: with the default 1s timeout the script for large inputs
	// would depend on wall-clock time instead of only on the input pair.
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMain(old, new, false)
	// Merge adjacent runs of the same type so equivalent inputs always
	// yield the same script regardless of how the bisect split them.
	diffs = dmp.DiffCleanupMerge(diffs)

	ops := make([]wire.Diff, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		ops = append(ops, wire.Diff{Op: opName(d.Type), Text: d.Text})
	}
	return ops
}

func opName(t diffmatchpatch.Operation) string {
	switch t {
	case diffmatchpatch.DiffInsert:
		return wire.DiffAdded
	case diffmatchpatch.DiffDelete:
		return wire.DiffRemoved
	default:
		return wire.DiffUnchanged
	}
}
