// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package abif

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"
)

// Element type codes used by the typed readers.
const (
	typeByte     = 1
	typeChar     = 2
	typeWord     = 3
	typeShort    = 4
	typeLong     = 5
	typeFloat    = 7
	typeDate     = 10
	typeTime     = 11
	typePString  = 18
	typeCString  = 19
	entrySize    = 28
	maxPackedLen = 4
)

// entry is one record of the ABIF directory.
type entry struct {
	tag      string
	number   uint32
	typ      uint16 // element type code
	elemSize uint16
	count    uint32
	length   uint32 // total data length in bytes
	value    uint32 // the data itself if length <= 4, else its file offset
}

// file is an ABIF file being decoded.
type file struct {
	r     io.ReadSeeker
	index []entry
}

func (f *file) readIndex(offset int64, n int) error {
	if _, err := f.r.Seek(offset, io.SeekStart); err != nil {
		return wrap(&IndexError{Entry: 0, Total: n})
	}
	br := bufio.NewReader(f.r)
	var buf [entrySize]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return wrap(&IndexError{Entry: i, Total: n})
		}
		// The last four bytes are the unused data handle.
		f.index = append(f.index, entry{
			tag:      string(buf[0:4]),
			number:   binary.BigEndian.Uint32(buf[4:]),
			typ:      binary.BigEndian.Uint16(buf[8:]),
			elemSize: binary.BigEndian.Uint16(buf[10:]),
			count:    binary.BigEndian.Uint32(buf[12:]),
			length:   binary.BigEndian.Uint32(buf[16:]),
			value:    binary.BigEndian.Uint32(buf[20:]),
		})
	}
	return nil
}

// lookup returns the entry with the given tag and number, or nil.
func (f *file) lookup(tag string, number uint32) *entry {
	for i := range f.index {
		if e := &f.index[i]; e.tag == tag && e.number == number {
			return e
		}
	}
	return nil
}

// lookupAll returns all entries with the given tag.
func (f *file) lookupAll(tag string) []*entry {
	var entries []*entry
	for i := range f.index {
		if e := &f.index[i]; e.tag == tag {
			entries = append(entries, e)
		}
	}
	return entries
}

// data returns the count*elemSize bytes of e's data, truncated to a whole
// number of elements, and checks that their length matches e.length.
func (f *file) data(e *entry) ([]byte, error) {
	want := uint64(e.count) * uint64(e.elemSize)
	var b []byte
	if e.length <= maxPackedLen {
		var packed [4]byte
		binary.BigEndian.PutUint32(packed[:], e.value)
		if want > maxPackedLen {
			want = maxPackedLen
		}
		b = packed[:want]
	} else {
		if _, err := f.r.Seek(int64(e.value), io.SeekStart); err != nil {
			return nil, wrap(&DataError{Expected: int(e.length), Actual: 0})
		}
		// Copy rather than preallocating: the length of a damaged entry can
		// be arbitrary.
		var buf bytes.Buffer
		n, _ := io.CopyN(&buf, f.r, int64(want))
		b = buf.Bytes()[:n]
	}
	if e.elemSize > 0 {
		b = b[:len(b)-len(b)%int(e.elemSize)]
	}
	if uint64(len(b)) != uint64(e.length) {
		return nil, wrap(&DataError{Expected: int(e.length), Actual: len(b)})
	}
	return b, nil
}

func (f *file) readString(e *entry) (string, error) {
	if e.elemSize != 1 {
		return "", errorf("%s entry %d has an invalid element size %d for string data", e.tag, e.number, e.elemSize)
	}
	if e.typ != typeChar && e.typ != typePString && e.typ != typeCString {
		return "", errorf("%s entry %d has an invalid data type %d for character data", e.tag, e.number, e.typ)
	}
	b, err := f.data(e)
	if err != nil {
		return "", err
	}
	switch {
	case e.typ == typePString && len(b) > 0:
		b = b[1:]
	case e.typ == typeCString && len(b) > 0:
		b = b[:len(b)-1]
	}
	return string(b), nil
}

func (f *file) readInt8s(e *entry) ([]int, error) {
	if e.elemSize != 1 {
		return nil, errorf("%s entry %d has an invalid element size %d for 1-byte integers", e.tag, e.number, e.elemSize)
	}
	if e.typ != typeByte && e.typ != typeChar {
		return nil, errorf("%s entry %d has an invalid data type %d for 1-byte integers", e.tag, e.number, e.typ)
	}
	b, err := f.data(e)
	if err != nil {
		return nil, err
	}
	vals := make([]int, len(b))
	for i, v := range b {
		if e.typ == typeByte {
			vals[i] = int(v)
		} else {
			vals[i] = int(int8(v))
		}
	}
	return vals, nil
}

func (f *file) readInt16s(e *entry) ([]int, error) {
	if e.elemSize != 2 {
		return nil, errorf("%s entry %d has an invalid element size %d for 2-byte integers", e.tag, e.number, e.elemSize)
	}
	if e.typ != typeWord && e.typ != typeShort {
		return nil, errorf("%s entry %d has an invalid data type %d for 2-byte integers", e.tag, e.number, e.typ)
	}
	b, err := f.data(e)
	if err != nil {
		return nil, err
	}
	vals := make([]int, len(b)/2)
	for i := range vals {
		v := binary.BigEndian.Uint16(b[2*i:])
		if e.typ == typeWord {
			vals[i] = int(v)
		} else {
			vals[i] = int(int16(v))
		}
	}
	return vals, nil
}

func (f *file) readInt32s(e *entry) ([]int, error) {
	if e.elemSize != 4 {
		return nil, errorf("%s entry %d has an invalid element size %d for 4-byte integers", e.tag, e.number, e.elemSize)
	}
	if e.typ != typeLong && e.typ != typeDate && e.typ != typeTime {
		return nil, errorf("%s entry %d has an invalid data type %d for 4-byte integers", e.tag, e.number, e.typ)
	}
	b, err := f.data(e)
	if err != nil {
		return nil, err
	}
	vals := make([]int, len(b)/4)
	for i := range vals {
		vals[i] = int(int32(binary.BigEndian.Uint32(b[4*i:])))
	}
	return vals, nil
}

func (f *file) readFloat32s(e *entry) ([]float32, error) {
	if e.elemSize != 4 {
		return nil, errorf("%s entry %d has an invalid element size %d for 4-byte floats", e.tag, e.number, e.elemSize)
	}
	if e.typ != typeFloat {
		return nil, errorf("%s entry %d has an invalid data type %d for 4-byte floats", e.tag, e.number, e.typ)
	}
	b, err := f.data(e)
	if err != nil {
		return nil, err
	}
	vals := make([]float32, len(b)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return vals, nil
}

// readDateTime combines a RUND and a RUNT entry.  The date packs the year
// in bits 31-16, the month in 15-8 and the day in 7-0; the time packs the
// hour in bits 31-24, the minute in 23-16 and the second in 15-8.
func (f *file) readDateTime(date, tm *entry) (time.Time, error) {
	dv, err := f.readInt32s(date)
	if err != nil {
		return time.Time{}, err
	}
	tv, err := f.readInt32s(tm)
	if err != nil {
		return time.Time{}, err
	}
	if len(dv) == 0 || len(tv) == 0 {
		return time.Time{}, errorf("empty %s/%s entry %d", date.tag, tm.tag, date.number)
	}
	d, t := uint32(dv[0]), uint32(tv[0])
	year, month, day := int(d>>16), int(d>>8&0xff), int(d&0xff)
	hour, min, sec := int(t>>24), int(t>>16&0xff), int(t>>8&0xff)
	ts := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if ts.Year() != year || int(ts.Month()) != month || ts.Day() != day ||
		ts.Hour() != hour || ts.Minute() != min || ts.Second() != sec {
		return time.Time{}, errorf("invalid run date/time %04d-%02d-%02d %02d:%02d:%02d in entry %d",
			year, month, day, hour, min, sec, date.number)
	}
	return ts, nil
}
