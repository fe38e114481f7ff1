// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package ztr decodes ZTR trace files.  See
// https://staden.sourceforge.net/ztr.html.  Briefly, a ZTR file is an
// 8-byte magic number and a 2-byte version followed by a list of chunks:
//
//   type[4] metadata-length[4] metadata[...] data-length[4] data[...]
//
// All integers are big-endian.  Each chunk's data starts with a format ID
// naming the codec that was applied to it; codecs may be stacked, so
// decoding strips one codec at a time until the raw format (0) is reached.
package ztr

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/log"
	"github.com/grailbio/seqtrace/encoding/trace"
)

// Magic is the 8-byte signature at the start of every ZTR file.
var Magic = []byte{0xae, 'Z', 'T', 'R', '\r', '\n', 0x1a, '\n'}

const (
	versionMajor = 1
	versionMinor = 2
)

// Chunk types understood by the decoder.  Other chunk types are skipped.
const (
	chunkSamples    = "SMP4"
	chunkBases      = "BASE"
	chunkPositions  = "BPOS"
	chunkConfidence = "CNF4"
	chunkText       = "TEXT"
)

// Decoder implements the trace decoder interface for ZTR files.
type Decoder struct{}

// Format implements traceprovider.Decoder.
func (Decoder) Format() trace.Format { return trace.ZTR }

// Decode implements traceprovider.Decoder.
func (Decoder) Decode(r io.ReadSeeker, path string) (*trace.Trace, error) {
	return Decode(r, path)
}

// chunk is one decoded ZTR chunk.  data is the raw payload, including the
// leading zero format byte.
type chunk struct {
	typ  string
	data []byte
}

// Decode reads a complete ZTR file from r.  Path is recorded in the
// resulting trace.
func Decode(r io.Reader, path string) (*trace.Trace, error) {
	var header [10]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errorf("the ZTR file header is invalid; the file appears to be damaged")
	}
	if !bytes.Equal(header[:8], Magic) {
		return nil, errorf("the ZTR file header is invalid; the file appears to be damaged")
	}
	major, minor := int(int8(header[8])), int(int8(header[9]))
	if major != versionMajor || minor != versionMinor {
		return nil, wrap(&VersionError{Major: major, Minor: minor})
	}

	var (
		d        trace.Data
		haveBase bool
	)
	for {
		c, err := readChunk(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if log.At(log.Debug) {
			log.Debug.Printf("ztr: %s: chunk %s, %d bytes", path, c.typ, len(c.data))
		}
		switch c.typ {
		case chunkSamples:
			if d.Channels, err = parseSamples(c.data); err != nil {
				return nil, err
			}
		case chunkBases:
			d.BaseCalls = bytes.ToUpper(c.data[1:])
			haveBase = true
		case chunkPositions:
			if d.Positions, err = parsePositions(c.data); err != nil {
				return nil, err
			}
		case chunkConfidence:
			if !haveBase {
				return nil, errorf("found a CNF4 chunk before the BASE chunk")
			}
			if d.Confidence, err = parseConfidence(c.data, len(d.BaseCalls)); err != nil {
				return nil, err
			}
		case chunkText:
			if d.Comments == nil {
				d.Comments = map[string]string{}
			}
			parseText(c.data, d.Comments)
		}
	}
	return trace.New(trace.ZTR, path, d)
}

// readChunk reads and fully decodes the next chunk.  It returns io.EOF when
// there are no more chunks.
func readChunk(r io.Reader) (chunk, error) {
	var typ [4]byte
	n, err := io.ReadFull(r, typ[:])
	if n == 0 && err == io.EOF {
		return chunk{}, io.EOF
	}
	if err != nil {
		return chunk{}, errorf("the ZTR data chunk type could not be read; the file appears to be damaged")
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return chunk{}, errorf("the ZTR chunk header could not be read; the file appears to be damaged")
	}
	metaLen := int64(binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.CopyN(ioutil.Discard, r, metaLen); err != nil {
		return chunk{}, errorf("the ZTR chunk header could not be read; the file appears to be damaged")
	}
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return chunk{}, errorf("the ZTR chunk header could not be read; the file appears to be damaged")
	}
	dataLen := int64(binary.BigEndian.Uint32(lenBuf[:]))

	// Copy rather than preallocating dataLen bytes: the length of a damaged
	// file can be arbitrary.
	var buf bytes.Buffer
	if n, err := io.CopyN(&buf, r, dataLen); err != nil {
		return chunk{}, wrap(&MissingDataError{Expected: dataLen, Actual: n})
	}
	data, err := decode(buf.Bytes())
	if err != nil {
		return chunk{}, err
	}
	return chunk{typ: string(typ[:]), data: data}, nil
}

// parseSamples parses an SMP4 payload: a format byte, a padding byte, then
// the A, C, G and T channels as big-endian 16-bit values.
func parseSamples(data []byte) (channels [trace.NumChannels][]int, err error) {
	if len(data) < 2 || (len(data)-2)%(2*trace.NumChannels) != 0 {
		return channels, errorf("SMP4 chunk length %d is not 2 plus a multiple of %d", len(data), 2*trace.NumChannels)
	}
	body := data[2:]
	n := len(body) / (2 * trace.NumChannels)
	for c := range channels {
		ch := make([]int, n)
		start := c * 2 * n
		for i := range ch {
			ch[i] = int(binary.BigEndian.Uint16(body[start+2*i:]))
		}
		channels[c] = ch
	}
	return channels, nil
}

// parsePositions parses a BPOS payload: a format byte, three padding bytes,
// then big-endian 32-bit sample indexes.
func parsePositions(data []byte) ([]int, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, errorf("BPOS chunk length %d is not a multiple of 4", len(data))
	}
	pos := make([]int, 0, len(data)/4-1)
	for i := 4; i < len(data); i += 4 {
		pos = append(pos, int(binary.BigEndian.Uint32(data[i:])))
	}
	return pos, nil
}

// parseConfidence parses the first n confidence values of a CNF4 payload.
// Values are signed bytes following the format byte; the called base's
// confidence comes first, followed by the other three bases', which are
// ignored.
func parseConfidence(data []byte, n int) ([]int, error) {
	if len(data) < n+1 {
		return nil, errorf("CNF4 chunk has %d bytes, but %d base calls need %d", len(data), n, n+1)
	}
	conf := make([]int, n)
	for i := range conf {
		conf[i] = int(int8(data[i+1]))
	}
	return conf, nil
}

// parseText parses a TEXT payload: a format byte, NUL-separated key/value
// pairs, and two trailing NULs.  A key without a value is dropped.
func parseText(data []byte, comments map[string]string) {
	if len(data) < 3 {
		return
	}
	fields := bytes.Split(data[1:len(data)-2], []byte{0})
	for i := 0; i+1 < len(fields); i += 2 {
		comments[string(fields[i])] = string(fields[i+1])
	}
}
