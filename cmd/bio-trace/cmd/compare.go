// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/seqtrace/encoding/trace"
)

// comparison is the result of comparing two traces.
type comparison struct {
	// distance is the Levenshtein distance between the base call strings.
	distance int
	// identical is true if the traces decode to the same calls, positions,
	// confidence scores and channels.
	identical bool
}

func compareTraces(a, b *trace.Trace) comparison {
	return comparison{
		distance:  matchr.Levenshtein(a.BaseCalls(), b.BaseCalls()),
		identical: identical(a, b),
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// identical reports whether a and b hold the same decoded data.  Paths,
// formats and comments are not compared.
func identical(a, b *trace.Trace) bool {
	if a.BaseCalls() != b.BaseCalls() ||
		!intsEqual(a.Positions(), b.Positions()) ||
		!intsEqual(a.Confidence(), b.Confidence()) {
		return false
	}
	for i := 0; i < trace.NumChannels; i++ {
		if !intsEqual(a.Channel(trace.Bases[i]), b.Channel(trace.Bases[i])) {
			return false
		}
	}
	return true
}

// compare loads two traces and reports the edit distance between their base
// calls and whether they are identical.
func compare(ctx context.Context, w io.Writer, path0, path1 string, opts loadOpts) error {
	t0, err := opts.load(ctx, path0)
	if err != nil {
		return err
	}
	t1, err := opts.load(ctx, path1)
	if err != nil {
		return err
	}
	c := compareTraces(t0, t1)
	_, err = fmt.Fprintf(w, "bases\t%d\t%d\nlevenshtein\t%d\nidentical\t%v\n",
		t0.NumBaseCalls(), t1.NumBaseCalls(), c.distance, c.identical)
	return err
}
