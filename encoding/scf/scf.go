// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package scf decodes SCF (Standard Chromatogram Format) version 3 trace
// files.  See http://staden.sourceforge.net/manual/formats_unix_3.html.
package scf

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/seqtrace/encoding/trace"
)

// Magic is the 4-byte signature at the start of every SCF file.
var Magic = []byte(".scf")

// Versions lists the supported values of the header's version field.
var Versions = []string{"3.00", "3.10"}

// MaxAmbiguityConfidence caps the confidence derived for an ambiguous base
// call.  It is also the score given when the member bases' probabilities of
// being correct sum to 1 or more, where the phred transform is undefined.
const MaxAmbiguityConfidence = 93

const headerLen = 56

// header is the fixed SCF file header, minus the magic number.
type header struct {
	numSamples     uint32
	samplesOffset  uint32
	numBases       uint32
	basesOffset    uint32
	commentsLen    uint32
	commentsOffset uint32
	version        string
	sampleSize     uint32
	codeSet        uint32
}

// Decoder implements the trace decoder interface for SCF files.
type Decoder struct{}

// Format implements traceprovider.Decoder.
func (Decoder) Format() trace.Format { return trace.SCF }

// Decode implements traceprovider.Decoder.
func (Decoder) Decode(r io.ReadSeeker, path string) (*trace.Trace, error) {
	return Decode(r, path)
}

// Decode reads a complete SCF file from r.  Path is recorded in the
// resulting trace.
func Decode(r io.ReadSeeker, path string) (*trace.Trace, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("scf: %s: version %s, %d samples of %d bytes, %d bases",
		path, h.version, h.numSamples, h.sampleSize, h.numBases)

	var d trace.Data
	if d.Positions, d.BaseCalls, d.Confidence, err = readBases(r, h); err != nil {
		return nil, err
	}
	if d.Channels, err = readSamples(r, h); err != nil {
		return nil, err
	}
	if d.Comments, err = readComments(r, h); err != nil {
		return nil, err
	}
	return trace.New(trace.SCF, path, d)
}

func readHeader(r io.Reader) (header, error) {
	var (
		h   header
		buf [headerLen]byte
	)
	if _, err := io.ReadFull(r, buf[:]); err != nil || !bytes.Equal(buf[:4], Magic) {
		return h, errorf("the SCF file header is invalid; the file appears to be damaged")
	}
	be := binary.BigEndian
	h.numSamples = be.Uint32(buf[4:])
	h.samplesOffset = be.Uint32(buf[8:])
	h.numBases = be.Uint32(buf[12:])
	// buf[16:24] holds two obsolete fields.
	h.basesOffset = be.Uint32(buf[24:])
	h.commentsLen = be.Uint32(buf[28:])
	h.commentsOffset = be.Uint32(buf[32:])
	h.version = string(buf[36:40])
	h.sampleSize = be.Uint32(buf[40:])
	h.codeSet = be.Uint32(buf[44:])
	// buf[48:56] holds the private data size and offset.

	supported := false
	for _, v := range Versions {
		supported = supported || h.version == v
	}
	if !supported {
		return h, wrap(&VersionError{Major: h.version[:1], Minor: h.version[2:]})
	}
	if h.sampleSize != 1 && h.sampleSize != 2 {
		return h, errorf("invalid sample size %d in the SCF header; it must be 1 or 2", h.sampleSize)
	}
	switch h.codeSet {
	case 0, 2, 4:
	default:
		return h, errorf("the SCF file uses code set %d; only code sets 0, 2 and 4 are recognized", h.codeSet)
	}
	return h, nil
}

// readSection reads n bytes at offset.  It returns fewer bytes only if the
// file is too short.
func readSection(r io.ReadSeeker, offset uint32, n uint64) ([]byte, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readBases(r io.ReadSeeker, h header) (positions []int, calls []byte, confidence []int, err error) {
	n := int(h.numBases)
	b, err := readSection(r, h.basesOffset, uint64(h.numBases)*9)
	if err != nil {
		return nil, nil, nil, errorf("reading base calls: %v", err)
	}
	if len(b) < 8*n {
		return nil, nil, nil, errorf("error while reading base call locations and probabilities; the file appears to be damaged")
	}
	positions = make([]int, n)
	for i := range positions {
		positions[i] = int(binary.BigEndian.Uint32(b[4*i:]))
	}
	var probs [trace.NumChannels][]byte
	for c := range probs {
		probs[c] = b[4*n+c*n : 4*n+(c+1)*n]
	}
	calls = bytes.ToUpper(b[8*n:])
	if len(calls) != n {
		return nil, nil, nil, wrap(&DataError{Expected: n, Actual: len(calls)})
	}
	if confidence, err = buildConfidence(calls, probs); err != nil {
		return nil, nil, nil, err
	}
	return positions, calls, confidence, nil
}

// buildConfidence derives a confidence score for each call from the four
// per-base probability arrays.  The probabilities are taken to be phred
// scores, -10*log10(P) where P is the probability that the call is wrong:
// for an unambiguous call the called base's value is used as is.  For an
// IUPAC ambiguity code, the probabilities of being correct of its member
// bases are summed and converted back to a phred score.
func buildConfidence(calls []byte, probs [trace.NumChannels][]byte) ([]int, error) {
	confidence := make([]int, len(calls))
	for i, b := range calls {
		if c := trace.ChannelIndex(b); c >= 0 {
			confidence[i] = int(probs[c][i])
			continue
		}
		members := trace.AmbiguityBases(b)
		if members == "" {
			return nil, errorf("unrecognized base call code %q", b)
		}
		var probSum float64
		for j := 0; j < len(members); j++ {
			q := float64(probs[trace.ChannelIndex(members[j])][i])
			probSum += 1 - math.Pow(10, -q/10)
		}
		confidence[i] = ambiguityConfidence(probSum)
	}
	return confidence, nil
}

func ambiguityConfidence(probSum float64) int {
	if probSum >= 1 {
		return MaxAmbiguityConfidence
	}
	q := math.Round(-10 * math.Log10(1-probSum))
	if q > MaxAmbiguityConfidence {
		return MaxAmbiguityConfidence
	}
	return int(q)
}

func readSamples(r io.ReadSeeker, h header) (channels [trace.NumChannels][]int, err error) {
	n, size := int(h.numSamples), int(h.sampleSize)
	b, err := readSection(r, h.samplesOffset, uint64(h.numSamples)*uint64(h.sampleSize)*uint64(trace.NumChannels))
	if err != nil {
		return channels, errorf("reading samples: %v", err)
	}
	mask := uint32(1)<<(8*uint(size)) - 1
	for c := range channels {
		start := c * n * size
		if len(b) < start+n*size {
			got := len(b) - start
			if got < 0 {
				got = 0
			}
			return channels, wrap(&DataError{Expected: n * size, Actual: got})
		}
		vals := make([]int, n)
		for i := range vals {
			p := start + i*size
			if size == 1 {
				vals[i] = int(b[p])
			} else {
				vals[i] = int(binary.BigEndian.Uint16(b[p:]))
			}
		}
		undoDelta(vals, mask)
		undoDelta(vals, mask)
		channels[c] = vals
	}
	return channels, nil
}

// undoDelta replaces vals by its prefix sums modulo mask+1.
func undoDelta(vals []int, mask uint32) {
	var prev uint32
	for i, v := range vals {
		prev = (prev + uint32(v)) & mask
		vals[i] = int(prev)
	}
}

// readComments reads the comments section, a list of "key=value" lines
// terminated by a NUL byte.  Some writers terminate it with a newline
// instead.
func readComments(r io.ReadSeeker, h header) (map[string]string, error) {
	comments := map[string]string{}
	if h.commentsLen == 0 {
		return comments, nil
	}
	b, err := readSection(r, h.commentsOffset, uint64(h.commentsLen))
	if err != nil {
		return nil, errorf("reading comments: %v", err)
	}
	if len(b) != int(h.commentsLen) {
		return nil, errorf("invalid comments section: %d bytes were expected but only %d could be read",
			h.commentsLen, len(b))
	}
	if last := b[len(b)-1]; last != 0 && last != '\n' {
		return nil, errorf("invalid comments section: missing terminator")
	}
	for _, line := range strings.Split(string(b[:len(b)-1]), "\n") {
		if line == "" {
			continue
		}
		key, value := line, ""
		if i := strings.IndexByte(line, '='); i >= 0 {
			key, value = line[:i], line[i+1:]
		}
		comments[key] = value
	}
	return comments, nil
}
