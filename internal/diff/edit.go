// Package diff computes a minimal edit script between two ordered sequences.
//
// Compute strips the common prefix and suffix, runs znkr.io/diff in optimal
// mode (Myers O(ND), no heuristics) on what remains and coalesces the
// single-element edits into deltas.
package diff

import (
	"fmt"

	zdiff "znkr.io/diff"
)

// DeltaKind identifies what a delta does to the original sequence.
type DeltaKind uint8

const (
	// Insert adds Revised.Len elements; Original.Len is zero.
	Insert DeltaKind = iota + 1
	// Delete removes Original.Len elements; Revised.Len is zero.
	Delete
	// Change replaces Original.Len elements by Revised.Len elements.
	Change
)

func (k DeltaKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Change:
		return "change"
	default:
		return "unknown"
	}
}

// Range is a half-open window [Pos, Pos+Len) into a sequence.
type Range struct {
	Pos int `json:"pos"`
	Len int `json:"len"`
}

// End returns the first position after the range.
func (r Range) End() int {
	return r.Pos + r.Len
}

// Delta is one contiguous edit.
type Delta struct {
	Kind     DeltaKind `json:"kind"`
	Original Range     `json:"original"`
	Revised  Range     `json:"revised"`
}

func (d Delta) String() string {
	return fmt.Sprintf("%s original=(%d,%d) revised=(%d,%d)",
		d.Kind, d.Original.Pos, d.Original.Len, d.Revised.Pos, d.Revised.Len)
}

// EditScript is the ordered list of deltas that turns one sequence into another.
// Deltas are sorted by position and never overlap or touch.
type EditScript []Delta

// Empty reports whether the script leaves the sequence untouched.
func (s EditScript) Empty() bool {
	return len(s) == 0
}

// Compute returns a minimal edit script turning a into b. It never fails, is
// deterministic for a given pair of inputs and returns an empty script exactly
// when a and b are element-wise equal.
func Compute[T comparable](a, b []T) EditScript {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]
	if len(midA) == 0 && len(midB) == 0 {
		return nil
	}

	return coalesce(zdiff.Edits(midA, midB, zdiff.Optimal()), prefix)
}

// coalesce folds runs of non-matching edits into deltas. base is the length
// of the common prefix that was stripped before the search.
func coalesce[T any](edits []zdiff.Edit[T], base int) EditScript {
	var script EditScript

	x, y := base, base
	runX, runY := -1, -1

	flush := func() {
		if runX < 0 {
			return
		}
		del, ins := x-runX, y-runY
		d := Delta{
			Original: Range{Pos: runX, Len: del},
			Revised:  Range{Pos: runY, Len: ins},
		}
		switch {
		case del > 0 && ins > 0:
			d.Kind = Change
		case del > 0:
			d.Kind = Delete
		default:
			d.Kind = Insert
		}
		script = append(script, d)
		runX, runY = -1, -1
	}

	for _, e := range edits {
		switch e.Op {
		case zdiff.Match:
			flush()
			x++
			y++
		case zdiff.Delete:
			if runX < 0 {
				runX, runY = x, y
			}
			x++
		case zdiff.Insert:
			if runX < 0 {
				runX, runY = x, y
			}
			y++
		}
	}
	flush()

	return script
}

// Apply replays script against a using the elements of b and returns the
// result. It is the inverse check of Compute: Apply(a, b, Compute(a, b))
// equals b.
func Apply[T any](a, b []T, script EditScript) []T {
	out := make([]T, 0, len(b))
	next := 0
	for _, d := range script {
		out = append(out, a[next:d.Original.Pos]...)
		out = append(out, b[d.Revised.Pos:d.Revised.End()]...)
		next = d.Original.End()
	}
	return append(out, a[next:]...)
}
