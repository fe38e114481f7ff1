// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trace_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testData() trace.Data {
	return trace.Data{
		Channels: [trace.NumChannels][]int{
			{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			{10, 11, 12, 13, 14, 15, 16, 17, 18, 19},
			{20, 21, 22, 23, 24, 25, 26, 27, 28, 29},
			{30, 31, 32, 33, 34, 35, 36, 37, 38, 39},
		},
		BaseCalls:  []byte("ACGWN"),
		Positions:  []int{1, 3, 3, 6, 8},
		Confidence: []int{10, 20, 30, 40, 50},
		Comments:   map[string]string{"NAME": "sample"},
	}
}

func TestNew(t *testing.T) {
	tr, err := trace.New(trace.SCF, "/tmp/traces/x.scf", testData())
	assert.NoError(t, err)
	expect.EQ(t, tr.Format(), trace.SCF)
	expect.EQ(t, tr.Path(), "/tmp/traces/x.scf")
	expect.EQ(t, tr.FileName(), "x.scf")
	expect.EQ(t, tr.Len(), 10)
	expect.EQ(t, tr.MaxValue(), 39)
	expect.EQ(t, tr.NumBaseCalls(), 5)
	expect.EQ(t, tr.BaseCalls(), "ACGWN")
	expect.EQ(t, tr.BaseCall(3), byte('W'))
	expect.EQ(t, tr.BaseCallPosition(4), 8)
	expect.EQ(t, tr.BaseCallConfidence(2), 30)
	expect.EQ(t, tr.Channel('G'), []int{20, 21, 22, 23, 24, 25, 26, 27, 28, 29})
	expect.EQ(t, tr.Channel('g'), tr.Channel('G'))
	expect.True(t, tr.Channel('N') == nil)
	expect.EQ(t, tr.Sample('t', 2), 32)
	v, ok := tr.Comment("NAME")
	expect.True(t, ok)
	expect.EQ(t, v, "sample")
	_, ok = tr.Comment("MACH")
	expect.False(t, ok)
	expect.False(t, tr.IsReverseComplemented())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *trace.Data)
	}{
		{"channel length", func(d *trace.Data) { d.Channels[2] = d.Channels[2][:9] }},
		{"position count", func(d *trace.Data) { d.Positions = d.Positions[:4] }},
		{"confidence count", func(d *trace.Data) { d.Confidence = append(d.Confidence, 1) }},
		{"negative position", func(d *trace.Data) { d.Positions[0] = -1 }},
		{"position past end", func(d *trace.Data) { d.Positions[4] = 10 }},
		{"decreasing position", func(d *trace.Data) { d.Positions[2] = 2 }},
	}
	for _, test := range tests {
		d := testData()
		test.modify(&d)
		_, err := trace.New(trace.ZTR, "x.ztr", d)
		expect.True(t, trace.IsFormatError(err, trace.ZTR), "%s: %v", test.name, err)
		expect.False(t, trace.IsFormatError(err, trace.ABI), test.name)
		var fe *trace.FormatError
		expect.True(t, errors.As(err, &fe), test.name)
	}
}

func TestEmpty(t *testing.T) {
	tr, err := trace.New(trace.ABI, "", trace.Data{})
	assert.NoError(t, err)
	expect.EQ(t, tr.Len(), 0)
	expect.EQ(t, tr.MaxValue(), 0)
	expect.EQ(t, tr.FileName(), "")
	expect.EQ(t, tr.PrevBaseCallIndex(5), -1)
	expect.EQ(t, tr.NextBaseCallIndex(5), -1)
	expect.EQ(t, len(tr.Comments()), 0)
	tr.ReverseComplement()
	expect.True(t, tr.IsReverseComplemented())
	expect.EQ(t, tr.Len(), 0)
}

func TestReverseComplement(t *testing.T) {
	tr, err := trace.New(trace.SCF, "x.scf", testData())
	assert.NoError(t, err)
	tr.ReverseComplement()
	expect.True(t, tr.IsReverseComplemented())
	expect.EQ(t, tr.BaseCalls(), "NWCGT")
	expect.EQ(t, tr.Channel('A'), []int{39, 38, 37, 36, 35, 34, 33, 32, 31, 30})
	expect.EQ(t, tr.Channel('C'), []int{29, 28, 27, 26, 25, 24, 23, 22, 21, 20})
	expect.EQ(t, tr.Channel('G'), []int{19, 18, 17, 16, 15, 14, 13, 12, 11, 10})
	expect.EQ(t, tr.Channel('T'), []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0})
	expect.EQ(t, tr.Positions(), []int{1, 3, 6, 6, 8})
	expect.EQ(t, tr.Confidence(), []int{50, 40, 30, 20, 10})
	expect.EQ(t, tr.MaxValue(), 39)

	tr.ReverseComplement()
	want := testData()
	expect.False(t, tr.IsReverseComplemented())
	expect.EQ(t, tr.BaseCalls(), string(want.BaseCalls))
	expect.EQ(t, tr.Positions(), want.Positions)
	expect.EQ(t, tr.Confidence(), want.Confidence)
	for i := 0; i < trace.NumChannels; i++ {
		expect.EQ(t, tr.Channel(trace.Bases[i]), want.Channels[i])
	}
}

func TestReverseComplementSequence(t *testing.T) {
	expect.EQ(t, trace.ReverseComplementSequence("AWSCTCHGAMCTKRCTTBAYGCDATVT"), "ABATHGCRTVAAGYMAGKTCDGAGSWT")
	expect.EQ(t, trace.ReverseComplementSequence(""), "")
	expect.EQ(t, trace.ReverseComplementSequence("A"), "T")
	expect.EQ(t, trace.ReverseComplementSequence("acgtn"), "nacgt")
	expect.EQ(t, trace.ReverseComplementSequence("A-C"), "G-T")

	const codes = "ACGTWSMKRYBDHVNacgtwsmkrybdhvn-*X"
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 100; i++ {
		seq := make([]byte, r.Intn(50))
		for j := range seq {
			seq[j] = codes[r.Intn(len(codes))]
		}
		s := string(seq)
		expect.EQ(t, trace.ReverseComplementSequence(trace.ReverseComplementSequence(s)), s)
	}
}

func TestAmbiguityBases(t *testing.T) {
	expect.EQ(t, trace.AmbiguityBases('N'), "ACGT")
	expect.EQ(t, trace.AmbiguityBases('W'), "AT")
	expect.EQ(t, trace.AmbiguityBases('B'), "CGT")
	expect.EQ(t, trace.AmbiguityBases('A'), "")
	expect.EQ(t, trace.AmbiguityBases('X'), "")
	expect.EQ(t, trace.ChannelIndex('t'), 3)
	expect.EQ(t, trace.ChannelIndex('N'), -1)
	expect.EQ(t, trace.Complement('M'), byte('K'))
	expect.EQ(t, trace.Complement('y'), byte('r'))
}

// linearPrev and linearNext are reference implementations of the base call
// searches.
func linearPrev(positions []int, s int) int {
	if len(positions) == 0 {
		return -1
	}
	best := 0
	for i, p := range positions {
		if p <= s {
			best = i
		}
	}
	return best
}

func linearNext(positions []int, s int) int {
	if len(positions) == 0 {
		return -1
	}
	for i, p := range positions {
		if p >= s {
			return i
		}
	}
	return len(positions) - 1
}

func TestBaseCallIndex(t *testing.T) {
	tr, err := trace.New(trace.SCF, "x.scf", testData())
	assert.NoError(t, err)
	// Positions are {1, 3, 3, 6, 8}.
	expect.EQ(t, tr.PrevBaseCallIndex(0), 0)
	expect.EQ(t, tr.PrevBaseCallIndex(3), 2)
	expect.EQ(t, tr.PrevBaseCallIndex(5), 2)
	expect.EQ(t, tr.PrevBaseCallIndex(9), 4)
	expect.EQ(t, tr.NextBaseCallIndex(0), 0)
	expect.EQ(t, tr.NextBaseCallIndex(3), 1)
	expect.EQ(t, tr.NextBaseCallIndex(4), 3)
	expect.EQ(t, tr.NextBaseCallIndex(9), 4)

	r := rand.New(rand.NewSource(1))
	for iter := 0; iter < 50; iter++ {
		n := 1 + r.Intn(100)
		var d trace.Data
		for i := range d.Channels {
			d.Channels[i] = make([]int, n)
		}
		nCalls := r.Intn(30)
		pos := 0
		for i := 0; i < nCalls; i++ {
			pos += r.Intn(3)
			if pos >= n {
				break
			}
			d.BaseCalls = append(d.BaseCalls, 'A')
			d.Positions = append(d.Positions, pos)
			d.Confidence = append(d.Confidence, 0)
		}
		tr, err := trace.New(trace.ZTR, "", d)
		assert.NoError(t, err)
		for s := -2; s < n+2; s++ {
			expect.EQ(t, tr.PrevBaseCallIndex(s), linearPrev(d.Positions, s), "prev s=%d positions=%v", s, d.Positions)
			expect.EQ(t, tr.NextBaseCallIndex(s), linearNext(d.Positions, s), "next s=%d positions=%v", s, d.Positions)
		}
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("no such file")
	var err error = &trace.IOError{Path: "a.ztr", Err: cause}
	expect.EQ(t, err.Error(), "a.ztr: no such file")
	expect.True(t, errors.Is(err, cause))

	err = trace.Errorf(trace.ABI, "bad entry %d", 3)
	expect.EQ(t, err.Error(), "abi: bad entry 3")
	expect.True(t, trace.IsFormatError(err, trace.ABI))
	expect.False(t, trace.IsFormatError(cause, trace.ABI))

	err = &trace.UnknownFileTypeError{Path: "x.txt"}
	assert.HasSubstr(t, err.Error(), "x.txt")
	expect.EQ(t, trace.Unknown.String(), "unknown")
	expect.EQ(t, trace.ZTR.String(), "ztr")
}
