// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/seqtrace/encoding/trace"
)

// meanConfidence returns the average confidence score of t's base calls, or
// 0 if there are none.
func meanConfidence(t *trace.Trace) float64 {
	conf := t.Confidence()
	if len(conf) == 0 {
		return 0
	}
	var sum int
	for _, q := range conf {
		sum += q
	}
	return float64(sum) / float64(len(conf))
}

// info writes one TSV line per trace: its format, file name, length, maximum
// sample value, number of base calls, mean confidence and number of
// comments.
func info(ctx context.Context, w io.Writer, paths []string, opts loadOpts) (err error) {
	out := tsv.NewWriter(w)
	out.WriteString("#FILE\tFORMAT\tLENGTH\tMAX\tBASES\tMEAN_CONF\tCOMMENTS")
	if err = out.EndLine(); err != nil {
		return
	}
	for _, path := range paths {
		var t *trace.Trace
		if t, err = opts.load(ctx, path); err != nil {
			return
		}
		out.WriteString(t.FileName())
		out.WriteString(t.Format().String())
		out.WriteUint32(uint32(t.Len()))
		out.WriteString(strconv.Itoa(t.MaxValue()))
		out.WriteUint32(uint32(t.NumBaseCalls()))
		out.WriteString(fmt.Sprintf("%.2f", meanConfidence(t)))
		out.WriteUint32(uint32(len(t.Comments())))
		if err = out.EndLine(); err != nil {
			return
		}
	}
	return out.Flush()
}

// comments writes the comments of the trace at path as key/value TSV lines,
// sorted by key.
func comments(ctx context.Context, w io.Writer, path string, opts loadOpts) (err error) {
	var t *trace.Trace
	if t, err = opts.load(ctx, path); err != nil {
		return
	}
	c := t.Comments()
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := tsv.NewWriter(w)
	out.WriteString("#KEY\tVALUE")
	if err = out.EndLine(); err != nil {
		return
	}
	for _, k := range keys {
		out.WriteString(k)
		out.WriteString(c[k])
		if err = out.EndLine(); err != nil {
			return
		}
	}
	return out.Flush()
}

type samplesOpts struct {
	loadOpts
	baseCalls bool
}

// samples writes the four channel intensities at each sample index of the
// trace at path.  With opts.baseCalls, a last column holds the base called
// at the sample, or '.' if none is.
func samples(ctx context.Context, w io.Writer, path string, opts samplesOpts) (err error) {
	var t *trace.Trace
	if t, err = opts.load(ctx, path); err != nil {
		return
	}
	out := tsv.NewWriter(w)
	out.WriteString("#INDEX\tA\tC\tG\tT")
	if opts.baseCalls {
		out.WriteString("BASE")
	}
	if err = out.EndLine(); err != nil {
		return
	}
	var channels [trace.NumChannels][]int
	for i := range channels {
		channels[i] = t.Channel(trace.Bases[i])
	}
	positions := t.Positions()
	call := 0
	for s := 0; s < t.Len(); s++ {
		out.WriteUint32(uint32(s))
		for _, ch := range channels {
			out.WriteString(strconv.Itoa(ch[s]))
		}
		if opts.baseCalls {
			for call < len(positions) && positions[call] < s {
				call++
			}
			if call < len(positions) && positions[call] == s {
				out.WriteByte(t.BaseCall(call))
			} else {
				out.WriteByte('.')
			}
		}
		if err = out.EndLine(); err != nil {
			return
		}
	}
	return out.Flush()
}
