// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package tracetest writes minimal ZTR, ABIF and SCF files for tests.
//
// Each encoder stores the channels, base calls, positions and confidence
// scores of a trace.Data so that decoding the result yields the same
// values.  Channel samples must fit in 16 bits (signed for ABIF, unsigned
// otherwise), and confidence scores in 7 bits.
package tracetest

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"path/filepath"
	"sort"
	"testing"

	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/testutil/assert"
)

// Data returns a small trace with ten samples and four base calls.
func Data() trace.Data {
	return trace.Data{
		Channels: [trace.NumChannels][]int{
			{0, 10, 200, 30, 4, 5, 6, 7, 8, 9},
			{1, 1, 1, 1, 100, 1, 1, 1, 1, 1},
			{500, 400, 300, 200, 100, 0, 100, 200, 300, 1000},
			{5, 5, 5, 5, 5, 5, 5, 5, 250, 5},
		},
		BaseCalls:  []byte("ACGT"),
		Positions:  []int{2, 4, 5, 8},
		Confidence: []int{20, 30, 15, 60},
		Comments:   map[string]string{"NAME": "sample1"},
	}
}

// ZTRMagic is the 8-byte ZTR signature.
var ZTRMagic = []byte{0xae, 'Z', 'T', 'R', '\r', '\n', 0x1a, '\n'}

// ZTR encodes d as a version 1.2 ZTR file with raw chunks.
func ZTR(d trace.Data) []byte {
	var b bytes.Buffer
	b.Write(ZTRMagic)
	b.Write([]byte{1, 2})
	chunk := func(typ string, data []byte) {
		var n [4]byte
		b.WriteString(typ)
		b.Write(n[:]) // no metadata
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		b.Write(n[:])
		b.Write(data)
	}

	samples := []byte{0, 0}
	for _, ch := range d.Channels {
		for _, v := range ch {
			samples = append(samples, byte(v>>8), byte(v))
		}
	}
	chunk("SMP4", samples)
	chunk("BASE", append([]byte{0}, d.BaseCalls...))
	positions := []byte{0, 0, 0, 0}
	for _, p := range d.Positions {
		positions = append(positions, byte(p>>24), byte(p>>16), byte(p>>8), byte(p))
	}
	chunk("BPOS", positions)
	conf := make([]byte, 1+4*len(d.Confidence))
	for i, q := range d.Confidence {
		conf[1+i] = byte(q)
	}
	chunk("CNF4", conf)
	if len(d.Comments) > 0 {
		text := []byte{0}
		for _, k := range sortedKeys(d.Comments) {
			text = append(text, k...)
			text = append(text, 0)
			text = append(text, d.Comments[k]...)
			text = append(text, 0)
		}
		chunk("TEXT", append(text, 0))
	}
	return b.Bytes()
}

// SCF encodes d as a version 3.00 SCF file with 2-byte samples.  The
// confidence of an ambiguous call is stored as the probability of its first
// member base.
func SCF(d trace.Data) []byte {
	var b bytes.Buffer
	b.Write(make([]byte, 128))
	n := len(d.BaseCalls)

	samplesOffset := b.Len()
	for _, ch := range d.Channels {
		delta := append([]int(nil), ch...)
		for l := 0; l < 2; l++ {
			for i := len(delta) - 1; i > 0; i-- {
				delta[i] = (delta[i] - delta[i-1]) & 0xffff
			}
		}
		for _, v := range delta {
			b.Write([]byte{byte(v >> 8), byte(v)})
		}
	}

	basesOffset := b.Len()
	for _, p := range d.Positions {
		b.Write([]byte{byte(p >> 24), byte(p >> 16), byte(p >> 8), byte(p)})
	}
	var probs [trace.NumChannels][]byte
	for c := range probs {
		probs[c] = make([]byte, n)
	}
	for i, call := range d.BaseCalls {
		c := trace.ChannelIndex(call)
		if c < 0 {
			if members := trace.AmbiguityBases(call); members != "" {
				c = trace.ChannelIndex(members[0])
			}
		}
		if c >= 0 {
			probs[c][i] = byte(d.Confidence[i])
		}
	}
	for _, p := range probs {
		b.Write(p)
	}
	b.Write(d.BaseCalls)

	commentsOffset := b.Len()
	var comments []byte
	for _, k := range sortedKeys(d.Comments) {
		comments = append(comments, k+"="+d.Comments[k]+"\n"...)
	}
	if len(comments) > 0 {
		comments = append(comments, 0)
	}
	b.Write(comments)

	out := b.Bytes()
	be := binary.BigEndian
	copy(out, ".scf")
	be.PutUint32(out[4:], uint32(len(d.Channels[0])))
	be.PutUint32(out[8:], uint32(samplesOffset))
	be.PutUint32(out[12:], uint32(n))
	be.PutUint32(out[24:], uint32(basesOffset))
	be.PutUint32(out[28:], uint32(len(comments)))
	be.PutUint32(out[32:], uint32(commentsOffset))
	copy(out[36:40], "3.00")
	be.PutUint32(out[40:], 2)
	return out
}

type abifEntry struct {
	tag      string
	number   uint32
	typ      uint16
	elemSize uint16
	data     []byte
}

func int16s(vals []int) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(b[2*i:], uint16(int16(v)))
	}
	return b
}

// ABIF encodes d as an ABIF version 1.01 file.  The filter wheel order is
// GATC, so DATA 9-12 hold the G, A, T and C channels.  The NAME comment,
// if any, is stored in SMPL 1; other comments are dropped.
func ABIF(d trace.Data) []byte {
	const (
		typeChar    = 2
		typeShort   = 4
		typePString = 18
		entrySize   = 28
	)
	conf := make([]byte, len(d.Confidence))
	for i, q := range d.Confidence {
		conf[i] = byte(q)
	}
	entries := []abifEntry{
		{"FWO_", 1, typeChar, 1, []byte("GATC")},
		{"DATA", 9, typeShort, 2, int16s(d.Channels[2])},
		{"DATA", 10, typeShort, 2, int16s(d.Channels[0])},
		{"DATA", 11, typeShort, 2, int16s(d.Channels[3])},
		{"DATA", 12, typeShort, 2, int16s(d.Channels[1])},
		{"PBAS", 1, typeChar, 1, d.BaseCalls},
		{"PCON", 1, typeChar, 1, conf},
		{"PLOC", 1, typeShort, 2, int16s(d.Positions)},
	}
	if name, ok := d.Comments["NAME"]; ok {
		entries = append(entries, abifEntry{"SMPL", 1, typePString, 1, append([]byte{byte(len(name))}, name...)})
	}

	var b bytes.Buffer
	b.Write(make([]byte, 128))
	offsets := make([]int, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = b.Len()
			b.Write(e.data)
		}
	}
	indexOffset := b.Len()
	for i, e := range entries {
		var rec [entrySize]byte
		copy(rec[:4], e.tag)
		binary.BigEndian.PutUint32(rec[4:], e.number)
		binary.BigEndian.PutUint16(rec[8:], e.typ)
		binary.BigEndian.PutUint16(rec[10:], e.elemSize)
		binary.BigEndian.PutUint32(rec[12:], uint32(len(e.data)/int(e.elemSize)))
		binary.BigEndian.PutUint32(rec[16:], uint32(len(e.data)))
		if len(e.data) > 4 {
			binary.BigEndian.PutUint32(rec[20:], uint32(offsets[i]))
		} else {
			copy(rec[20:24], e.data)
		}
		b.Write(rec[:])
	}
	out := b.Bytes()
	copy(out, "ABIF")
	binary.BigEndian.PutUint16(out[4:], 101)
	binary.BigEndian.PutUint16(out[16:], entrySize)
	binary.BigEndian.PutUint32(out[18:], uint32(len(entries)))
	binary.BigEndian.PutUint32(out[22:], uint32(len(entries)*entrySize))
	binary.BigEndian.PutUint32(out[26:], uint32(indexOffset))
	return out
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	assert.NoError(t, ioutil.WriteFile(path, data, 0644))
	return path
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
