// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package trace defines the in-memory representation of a decoded Sanger
// sequencing trace.  A trace consists of four fluorescence channels (one per
// base, in the order A, C, G, T) sampled at a common rate, the called base
// sequence, the sample position of each base call and a phred-like
// confidence score for each call.
//
// Traces are produced by the format decoders in encoding/ztr, encoding/abif
// and encoding/scf; encoding/traceprovider picks the right one for a file.
package trace

import (
	"path/filepath"
	"sort"
)

// Data holds the fields a decoder extracts from a trace file.  It is
// consumed by New.
type Data struct {
	// Channels holds the samples for each base, indexed by ChannelIndex.
	Channels [NumChannels][]int
	// BaseCalls is the called sequence, as IUPAC codes.
	BaseCalls []byte
	// Positions is the sample index of each base call.
	Positions []int
	// Confidence is the quality score of each base call.
	Confidence []int
	// Comments holds free-form key/value metadata.  May be nil.
	Comments map[string]string
}

// Trace is a decoded sequencing trace.  A Trace is not safe for concurrent
// mutation; ReverseComplement is the only method that modifies it.
type Trace struct {
	format     Format
	path       string
	channels   [NumChannels][]int
	maxValue   int
	calls      []byte
	positions  []int
	confidence []int
	comments   map[string]string
	reversed   bool
}

// New validates d and builds a Trace from it.  The Trace takes ownership of
// the slices and map in d.  Validation failures are reported as FormatErrors
// for format f.
//
// New requires that all channels have the same length, that there is
// exactly one position and one confidence score per base call, and that
// positions are non-decreasing sample indexes within the trace.
func New(f Format, path string, d Data) (*Trace, error) {
	n := len(d.Channels[0])
	for i := 1; i < NumChannels; i++ {
		if len(d.Channels[i]) != n {
			return nil, Errorf(f, "channel %c has %d samples, but channel %c has %d",
				Bases[i], len(d.Channels[i]), Bases[0], n)
		}
	}
	if len(d.Positions) != len(d.BaseCalls) {
		return nil, Errorf(f, "found %d base call positions for %d base calls", len(d.Positions), len(d.BaseCalls))
	}
	if len(d.Confidence) != len(d.BaseCalls) {
		return nil, Errorf(f, "found %d confidence scores for %d base calls", len(d.Confidence), len(d.BaseCalls))
	}
	prev := 0
	for i, p := range d.Positions {
		if p < 0 || p >= n {
			return nil, Errorf(f, "base call %d is at sample %d, outside of the trace [0, %d)", i, p, n)
		}
		if p < prev {
			return nil, Errorf(f, "base call %d is at sample %d, before the previous call at %d", i, p, prev)
		}
		prev = p
	}
	t := &Trace{
		format:     f,
		path:       path,
		channels:   d.Channels,
		calls:      d.BaseCalls,
		positions:  d.Positions,
		confidence: d.Confidence,
		comments:   d.Comments,
	}
	if t.comments == nil {
		t.comments = map[string]string{}
	}
	for _, ch := range t.channels {
		for _, v := range ch {
			if v > t.maxValue {
				t.maxValue = v
			}
		}
	}
	return t, nil
}

// Format returns the format the trace was decoded from.
func (t *Trace) Format() Format { return t.format }

// Path returns the pathname the trace was decoded from.
func (t *Trace) Path() string { return t.path }

// FileName returns the last element of Path, for display.
func (t *Trace) FileName() string {
	if t.path == "" {
		return ""
	}
	return filepath.Base(t.path)
}

// Channel returns the samples for the given base (A, C, G or T, any case).
// It returns nil for any other byte.  The caller must not modify the result.
func (t *Trace) Channel(base byte) []int {
	i := ChannelIndex(base)
	if i < 0 {
		return nil
	}
	return t.channels[i]
}

// Sample returns the intensity of the given base's channel at sample index
// i.
//
// REQUIRES: base is one of ACGTacgt, and 0 <= i < Len().
func (t *Trace) Sample(base byte, i int) int {
	return t.channels[ChannelIndex(base)][i]
}

// Len returns the number of samples in each channel.
func (t *Trace) Len() int { return len(t.channels[0]) }

// MaxValue returns the largest sample value over all four channels.
func (t *Trace) MaxValue() int { return t.maxValue }

// BaseCalls returns the called sequence.
func (t *Trace) BaseCalls() string { return string(t.calls) }

// BaseCall returns the i'th base call.
func (t *Trace) BaseCall(i int) byte { return t.calls[i] }

// NumBaseCalls returns the number of base calls.
func (t *Trace) NumBaseCalls() int { return len(t.calls) }

// BaseCallPosition returns the sample index of the i'th base call.
func (t *Trace) BaseCallPosition(i int) int { return t.positions[i] }

// BaseCallConfidence returns the confidence score of the i'th base call.
func (t *Trace) BaseCallConfidence(i int) int { return t.confidence[i] }

// Positions returns the sample index of every base call.  The caller must
// not modify the result.
func (t *Trace) Positions() []int { return t.positions }

// Confidence returns the confidence score of every base call.  The caller
// must not modify the result.
func (t *Trace) Confidence() []int { return t.confidence }

// Comment returns the comment stored under key, if any.
func (t *Trace) Comment(key string) (string, bool) {
	v, ok := t.comments[key]
	return v, ok
}

// Comments returns all comments.  The caller must not modify the result.
func (t *Trace) Comments() map[string]string { return t.comments }

// IsReverseComplemented reports whether the trace has been reverse
// complemented an odd number of times.
func (t *Trace) IsReverseComplemented() bool { return t.reversed }

// ReverseComplement reverse-complements the trace in place: base calls are
// complemented and reversed, each channel is reversed and the A/T and C/G
// channels are swapped, and confidence scores and positions are reversed,
// with positions remapped to the reversed sample axis.  Applying it twice
// restores the original trace.
func (t *Trace) ReverseComplement() {
	reverseComplementInplace(t.calls)
	for _, ch := range t.channels {
		reverseInts(ch)
	}
	t.channels[0], t.channels[3] = t.channels[3], t.channels[0]
	t.channels[1], t.channels[2] = t.channels[2], t.channels[1]
	reverseInts(t.confidence)
	reverseInts(t.positions)
	end := t.Len() - 1
	for i, p := range t.positions {
		t.positions[i] = end - p
	}
	t.reversed = !t.reversed
}

func reverseInts(v []int) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

// PrevBaseCallIndex returns the index of the last base call located at or
// before sample index s.  If s precedes the first base call, it returns 0.
// It returns -1 if the trace has no base calls.
func (t *Trace) PrevBaseCallIndex(s int) int {
	if len(t.positions) == 0 {
		return -1
	}
	i := sort.Search(len(t.positions), func(i int) bool { return t.positions[i] > s })
	if i == 0 {
		return 0
	}
	return i - 1
}

// NextBaseCallIndex returns the index of the first base call located at or
// after sample index s.  If s follows the last base call, it returns the
// index of the last base call.  It returns -1 if the trace has no base
// calls.
func (t *Trace) NextBaseCallIndex(s int) int {
	n := len(t.positions)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return t.positions[i] >= s })
	if i == n {
		return n - 1
	}
	return i
}
