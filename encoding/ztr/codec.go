// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ztr

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"

	"github.com/klauspost/compress/zlib"
)

// Codec IDs.  Every chunk payload starts with one of these.
const (
	formatRaw      = 0
	formatRLE      = 1
	formatZlib     = 2
	formatDelta8   = 64
	formatDelta16  = 65
	formatDelta32  = 66
	format16To8    = 70
	format32To8    = 71
	formatFollow   = 72
	escape8        = -128
	followTableLen = 256
)

// codec inverts one encoding step.  Its input is the payload following the
// format ID byte; its output starts with the next format ID byte.
type codec func(data []byte) ([]byte, error)

var codecs = map[int]codec{
	formatRLE:     decodeRLE,
	formatZlib:    decodeZlib,
	formatDelta8:  func(data []byte) ([]byte, error) { return decodeDelta(data, 1, 0) },
	formatDelta16: func(data []byte) ([]byte, error) { return decodeDelta(data, 2, 0) },
	formatDelta32: func(data []byte) ([]byte, error) { return decodeDelta(data, 4, 2) },
	format16To8:   func(data []byte) ([]byte, error) { return decodeWiden(data, 2) },
	format32To8:   func(data []byte) ([]byte, error) { return decodeWiden(data, 4) },
	formatFollow:  decodeFollow,
}

// decode repeatedly strips the format ID byte and applies the matching
// codec until the payload is raw.  The returned slice still starts with the
// raw (zero) format byte.
func decode(data []byte) ([]byte, error) {
	for {
		if len(data) == 0 {
			return nil, errorf("empty chunk data")
		}
		id := int(int8(data[0]))
		if id == formatRaw {
			return data, nil
		}
		c, ok := codecs[id]
		if !ok {
			return nil, wrap(&DataFormatError{ID: id})
		}
		var err error
		if data, err = c(data[1:]); err != nil {
			return nil, err
		}
	}
}

// The uncompressed length of RLE and zlib payloads is written in the byte
// order of the machine that produced the file.  In practice this is
// little-endian.
var lengthOrder = binary.LittleEndian

func decodeRLE(data []byte) ([]byte, error) {
	if len(data) < 5 {
		return nil, errorf("RLE data is too short (%d bytes)", len(data))
	}
	want := lengthOrder.Uint32(data)
	guard := data[4]
	out := make([]byte, 0, len(data))
	for i := 5; i < len(data); {
		if data[i] != guard {
			out = append(out, data[i])
			i++
			continue
		}
		if i+1 >= len(data) {
			return nil, errorf("RLE data ends inside a run")
		}
		n := int(data[i+1])
		if n == 0 {
			out = append(out, guard)
			i += 2
			continue
		}
		if i+2 >= len(data) {
			return nil, errorf("RLE data ends inside a run")
		}
		for j := 0; j < n; j++ {
			out = append(out, data[i+2])
		}
		i += 3
	}
	if uint64(len(out)) != uint64(want) {
		return nil, errorf("RLE decompression failed: expected %d bytes, got %d", want, len(out))
	}
	return out, nil
}

func decodeZlib(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errorf("zlib data is too short (%d bytes)", len(data))
	}
	want := lengthOrder.Uint32(data)
	zr, err := zlib.NewReader(bytes.NewReader(data[4:]))
	if err != nil {
		return nil, errorf("zlib decompression failed: %v", err)
	}
	out, err := ioutil.ReadAll(zr)
	if err != nil {
		return nil, errorf("zlib decompression failed: %v", err)
	}
	if err := zr.Close(); err != nil {
		return nil, errorf("zlib decompression failed: %v", err)
	}
	if uint64(len(out)) != uint64(want) {
		return nil, errorf("zlib decompression failed: expected %d bytes, got %d", want, len(out))
	}
	return out, nil
}

// decodeDelta inverts the N-bit delta filter.  data[0] is the number of
// delta levels, followed by pad bytes of padding and then big-endian
// unsigned values of the given width.  Each level replaces the values with
// their running sum, modulo 2^(8*width).
func decodeDelta(data []byte, width, pad int) ([]byte, error) {
	if len(data) < 1+pad {
		return nil, errorf("%d-bit delta data is too short (%d bytes)", 8*width, len(data))
	}
	levels := int(int8(data[0]))
	body := data[1+pad:]
	if len(body)%width != 0 {
		return nil, errorf("%d-bit delta data length %d is not a multiple of %d", 8*width, len(body), width)
	}
	vals := make([]uint32, len(body)/width)
	for i := range vals {
		vals[i] = getUint(body[i*width:], width)
	}
	mask := uint32(uint64(1)<<(8*uint(width)) - 1)
	for l := 0; l < levels; l++ {
		prefixSum(vals, mask)
	}
	out := make([]byte, len(body))
	for i, v := range vals {
		putUint(out[i*width:], width, v)
	}
	return out, nil
}

// prefixSum replaces each value with the sum of itself and all preceding
// values, keeping only the bits in mask.
func prefixSum(vals []uint32, mask uint32) {
	var prev uint32
	for i, v := range vals {
		prev = (prev + v) & mask
		vals[i] = prev
	}
}

func getUint(b []byte, width int) uint32 {
	switch width {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(b))
	default:
		return binary.BigEndian.Uint32(b)
	}
}

func putUint(b []byte, width int, v uint32) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(v))
	default:
		binary.BigEndian.PutUint32(b, v)
	}
}

// decodeWiden inverts the 16-to-8 and 32-to-8 bit conversions.  Each signed
// byte is sign-extended to width bytes, except -128, which is followed by
// the literal big-endian value.
func decodeWiden(data []byte, width int) ([]byte, error) {
	out := make([]byte, 0, len(data)*width)
	for i := 0; i < len(data); {
		v := int8(data[i])
		if v != escape8 {
			var buf [4]byte
			putUint(buf[:], width, uint32(int32(v)))
			out = append(out, buf[:width]...)
			i++
			continue
		}
		if i+1+width > len(data) {
			return nil, errorf("%d- to 8-bit data ends inside an escaped value", 8*width)
		}
		out = append(out, data[i+1:i+1+width]...)
		i += 1 + width
	}
	return out, nil
}

// decodeFollow inverts the "follow" predictor.  The first 256 bytes are the
// table of predicted successors; the next byte is literal, and each
// subsequent byte is the signed difference between the prediction for the
// previous output byte and the actual byte.
func decodeFollow(data []byte) ([]byte, error) {
	if len(data) <= followTableLen {
		return nil, errorf("follow data is too short (%d bytes)", len(data))
	}
	table := data[:followTableLen]
	in := data[followTableLen:]
	out := make([]byte, len(in))
	out[0] = in[0]
	for i := 1; i < len(in); i++ {
		out[i] = table[out[i-1]] - in[i]
	}
	return out, nil
}
