// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ztr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// ztrBuilder assembles a ZTR file in memory.
type ztrBuilder struct {
	buf bytes.Buffer
}

func newZTRBuilder(major, minor byte) *ztrBuilder {
	b := &ztrBuilder{}
	b.buf.Write(Magic)
	b.buf.Write([]byte{major, minor})
	return b
}

func (b *ztrBuilder) chunk(typ string, meta, data []byte) *ztrBuilder {
	var n [4]byte
	b.buf.WriteString(typ)
	binary.BigEndian.PutUint32(n[:], uint32(len(meta)))
	b.buf.Write(n[:])
	b.buf.Write(meta)
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	b.buf.Write(n[:])
	b.buf.Write(data)
	return b
}

func (b *ztrBuilder) decode() (*trace.Trace, error) {
	return Decoder{}.Decode(bytes.NewReader(b.buf.Bytes()), "/data/test.ztr")
}

func samplesPayload(channels [trace.NumChannels][]uint16) []byte {
	out := []byte{0, 0}
	for _, ch := range channels {
		for _, v := range ch {
			out = append(out, byte(v>>8), byte(v))
		}
	}
	return out
}

func positionsPayload(pos ...uint32) []byte {
	out := []byte{0, 0, 0, 0}
	for _, p := range pos {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], p)
		out = append(out, b[:]...)
	}
	return out
}

var testChannels = [trace.NumChannels][]uint16{
	{1, 2, 3, 4},
	{10, 20, 30, 40},
	{100, 200, 300, 400},
	{1000, 2000, 3000, 65535},
}

func wantChannels() [trace.NumChannels][]int {
	var out [trace.NumChannels][]int
	for i, ch := range testChannels {
		for _, v := range ch {
			out[i] = append(out[i], int(v))
		}
	}
	return out
}

func basicFile() *ztrBuilder {
	return newZTRBuilder(1, 2).
		chunk("BASE", nil, []byte("\x00ACGT")).
		chunk("BPOS", nil, positionsPayload(0, 1, 2, 3)).
		chunk("CNF4", nil, []byte{0, 30, 30, 30, 30}).
		chunk("SMP4", nil, samplesPayload(testChannels))
}

func TestDecodeRaw(t *testing.T) {
	tr, err := basicFile().decode()
	assert.NoError(t, err)
	expect.EQ(t, tr.Format(), trace.ZTR)
	expect.EQ(t, tr.FileName(), "test.ztr")
	expect.EQ(t, tr.BaseCalls(), "ACGT")
	expect.EQ(t, tr.Positions(), []int{0, 1, 2, 3})
	expect.EQ(t, tr.Confidence(), []int{30, 30, 30, 30})
	want := wantChannels()
	for i := 0; i < trace.NumChannels; i++ {
		expect.EQ(t, tr.Channel(trace.Bases[i]), want[i])
	}
	expect.EQ(t, tr.MaxValue(), 65535)
	expect.EQ(t, tr.Len(), 4)
	expect.EQ(t, len(tr.Comments()), 0)
}

func TestDecodeCompressed(t *testing.T) {
	raw := samplesPayload(testChannels)
	vals := make([]uint32, len(raw)/2)
	for i := range vals {
		vals[i] = uint32(binary.BigEndian.Uint16(raw[2*i:]))
	}
	text := []byte("\x00NAME\x00sample 1\x00MACH\x003730xl\x00ORPHAN\x00\x00")
	b := newZTRBuilder(1, 2).
		chunk("TEXT", nil, text).
		chunk("CLIP", []byte("ignored"), []byte{0, 0, 0, 0, 1, 0, 0, 0, 3}).
		chunk("SMP4", []byte("meta"), encodeZlib(t, encodeDelta(vals, 2, 3))).
		chunk("BASE", nil, encodeZlib(t, []byte("\x00acgw"))).
		chunk("BPOS", nil, positionsPayload(0, 1, 1, 3)).
		chunk("CNF4", nil, []byte{0, 10, 20, 0xff, 40, 1, 2, 3})
	tr, err := b.decode()
	require.NoError(t, err)
	expect.EQ(t, tr.BaseCalls(), "ACGW")
	expect.EQ(t, tr.Positions(), []int{0, 1, 1, 3})
	expect.EQ(t, tr.Confidence(), []int{10, 20, -1, 40})
	expect.EQ(t, tr.Channel('T'), wantChannels()[3])
	v, ok := tr.Comment("NAME")
	expect.True(t, ok)
	expect.EQ(t, v, "sample 1")
	v, _ = tr.Comment("MACH")
	expect.EQ(t, v, "3730xl")
	_, ok = tr.Comment("ORPHAN")
	expect.False(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	var (
		ve  *VersionError
		mde *MissingDataError
		dfe *DataFormatError
	)

	_, err := newZTRBuilder(1, 3).decode()
	require.True(t, errors.As(err, &ve), "%v", err)
	expect.EQ(t, *ve, VersionError{Major: 1, Minor: 3})
	expect.True(t, trace.IsFormatError(err, trace.ZTR))

	_, err = Decode(bytes.NewReader([]byte("ABIF\x00\x65\x00\x00\x00\x00")), "x")
	expect.True(t, trace.IsFormatError(err, trace.ZTR))

	_, err = Decode(bytes.NewReader(Magic), "x")
	expect.True(t, trace.IsFormatError(err, trace.ZTR))

	b := basicFile()
	truncated := b.buf.Bytes()[:b.buf.Len()-3]
	_, err = Decode(bytes.NewReader(truncated), "x")
	require.True(t, errors.As(err, &mde), "%v", err)
	expect.EQ(t, mde.Expected, int64(len(samplesPayload(testChannels))))
	expect.EQ(t, mde.Actual, int64(len(samplesPayload(testChannels))-3))

	_, err = newZTRBuilder(1, 2).chunk("BASE", nil, []byte{9, 1, 2}).decode()
	require.True(t, errors.As(err, &dfe), "%v", err)
	expect.EQ(t, dfe.ID, 9)

	_, err = newZTRBuilder(1, 2).
		chunk("CNF4", nil, []byte{0, 30}).
		chunk("BASE", nil, []byte("\x00A")).
		decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)

	_, err = newZTRBuilder(1, 2).chunk("BASE", nil, []byte("\x00ACGT")).
		chunk("CNF4", nil, []byte{0, 30, 30}).decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)

	_, err = newZTRBuilder(1, 2).chunk("SMP4", nil, []byte{0, 0, 1}).decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)

	_, err = newZTRBuilder(1, 2).chunk("BPOS", nil, []byte{0, 0, 0}).decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)

	// One position for four base calls.
	_, err = newZTRBuilder(1, 2).
		chunk("BASE", nil, []byte("\x00ACGT")).
		chunk("BPOS", nil, positionsPayload(0)).
		chunk("CNF4", nil, []byte{0, 30, 30, 30, 30}).
		chunk("SMP4", nil, samplesPayload(testChannels)).
		decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)

	// A chunk type cut short.
	b = basicFile()
	b.buf.WriteString("TE")
	_, err = b.decode()
	expect.True(t, trace.IsFormatError(err, trace.ZTR), "%v", err)
}
