// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package abif decodes Applied Biosystems ABIF (.ab1) trace files.
//
// An ABIF file is a directory of typed, tagged entries.  Each entry is
// identified by a four-character tag and an instance number; its data is
// either packed into the entry itself (four bytes or less) or stored at an
// absolute file offset.  See "Applied Biosystems Genetic Analysis Data File
// Format", 2009.
//
// Following the Staden package, entry 1 of PBAS, PCON and PLOC (the
// user-edited calls) is used, and DATA entries 9-12 are assumed to hold the
// processed, not raw, channel data.  Nothing in the file marks them as
// such.
package abif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/seqtrace/encoding/trace"
)

// Magic is the 4-byte signature at the start of every ABIF file.
var Magic = []byte("ABIF")

const (
	headerLen       = 30
	supportedMajor  = 1
	firstDataNumber = 9
)

// Decoder implements the trace decoder interface for ABIF files.
type Decoder struct{}

// Format implements traceprovider.Decoder.
func (Decoder) Format() trace.Format { return trace.ABI }

// Decode implements traceprovider.Decoder.
func (Decoder) Decode(r io.ReadSeeker, path string) (*trace.Trace, error) {
	return Decode(r, path)
}

// Decode reads a complete ABIF file from r.  Path is recorded in the
// resulting trace.
func Decode(r io.ReadSeeker, path string) (*trace.Trace, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil || !bytes.Equal(header[:4], Magic) {
		return nil, errorf("the ABI file header is invalid; the file appears to be damaged")
	}
	version := int(binary.BigEndian.Uint16(header[4:]))
	if version/100 != supportedMajor {
		return nil, wrap(&VersionError{Major: version / 100, Minor: version % 100})
	}
	// header[6:16] holds the name, number and type of the directory entry,
	// and header[16:18] its element size; none of these are needed.
	nEntries := int(int32(binary.BigEndian.Uint32(header[18:])))
	indexOffset := int64(int32(binary.BigEndian.Uint32(header[26:])))
	if nEntries < 0 || indexOffset < 0 {
		return nil, errorf("the ABI file header is invalid (%d entries at offset %d)", nEntries, indexOffset)
	}

	f := &file{r: r}
	if err := f.readIndex(indexOffset, nEntries); err != nil {
		return nil, err
	}
	log.Debug.Printf("abif: %s: %d directory entries", path, nEntries)

	var (
		d   trace.Data
		err error
	)
	if d.BaseCalls, err = f.readBaseCalls(); err != nil {
		return nil, err
	}
	if d.Confidence, err = f.readConfidence(); err != nil {
		return nil, err
	}
	order, err := f.baseOrder()
	if err != nil {
		return nil, err
	}
	if d.Channels, err = f.readChannels(order); err != nil {
		return nil, err
	}
	if d.Positions, err = f.readPositions(); err != nil {
		return nil, err
	}
	if d.Comments, err = f.readComments(order, d.Positions); err != nil {
		return nil, err
	}
	return trace.New(trace.ABI, path, d)
}

// mustLookup is lookup for mandatory entries.
func (f *file) mustLookup(tag string, number uint32, what string) (*entry, error) {
	e := f.lookup(tag, number)
	if e == nil {
		return nil, errorf("no %s (%s entry %d) were found in the ABI file; the file might be damaged", what, tag, number)
	}
	return e, nil
}

// readBaseCalls reads PBAS 1, the user-edited calls.  PBAS 2 holds the calls
// as made by the basecaller and is normally identical.
func (f *file) readBaseCalls() ([]byte, error) {
	e, err := f.mustLookup("PBAS", 1, "base call data")
	if err != nil {
		return nil, err
	}
	s, err := f.readString(e)
	if err != nil {
		return nil, err
	}
	return bytes.ToUpper([]byte(s)), nil
}

// readConfidence reads PCON 1.  The entry is typed as signed bytes although
// the format documentation describes values up to 255; observed values stay
// well below 128, so the declared type is trusted.
func (f *file) readConfidence() ([]int, error) {
	e, err := f.mustLookup("PCON", 1, "confidence scores")
	if err != nil {
		return nil, err
	}
	return f.readInt8s(e)
}

func (f *file) readPositions() ([]int, error) {
	e, err := f.mustLookup("PLOC", 1, "base call locations")
	if err != nil {
		return nil, err
	}
	return f.readInt16s(e)
}

// baseOrder returns the channel index of each of the four dyes, as given by
// the filter wheel order (FWO_) entry.
func (f *file) baseOrder() ([trace.NumChannels]int, error) {
	var order [trace.NumChannels]int
	entries := f.lookupAll("FWO_")
	switch {
	case len(entries) == 0:
		return order, errorf("no filter wheel order (FWO_) entry was found in the ABI file")
	case len(entries) > 1:
		return order, errorf("found %d filter wheel order (FWO_) entries in the ABI file", len(entries))
	case entries[0].length != 4:
		return order, errorf("incorrect data length %d for the filter wheel order entry", entries[0].length)
	}
	var bases [4]byte
	binary.BigEndian.PutUint32(bases[:], entries[0].value)
	var seen [trace.NumChannels]bool
	for i, b := range bases {
		c := trace.ChannelIndex(b)
		if c < 0 || seen[c] {
			return order, errorf("invalid filter wheel order %q", bases[:])
		}
		seen[c] = true
		order[i] = c
	}
	return order, nil
}

func (f *file) readChannels(order [trace.NumChannels]int) (channels [trace.NumChannels][]int, err error) {
	for i, c := range order {
		var e *entry
		if e, err = f.mustLookup("DATA", uint32(firstDataNumber+i), "trace data"); err != nil {
			return
		}
		if channels[c], err = f.readInt16s(e); err != nil {
			return
		}
	}
	return
}

const (
	sortableTimeFormat = "20060102.150405"
	displayTimeFormat  = "Mon 02 Jan 15:04:05 2006"
)

// readComments collects the optional run metadata.  Keys follow the Staden
// package's where it reads the same value; values Staden does not read get
// descriptive keys.
func (f *file) readComments(order [trace.NumChannels]int, positions []int) (map[string]string, error) {
	comments := map[string]string{}
	str := func(tag string, number uint32, key string) error {
		e := f.lookup(tag, number)
		if e == nil {
			return nil
		}
		s, err := f.readString(e)
		if err == nil {
			comments[key] = s
		}
		return err
	}

	if err := str("SMPL", 1, "NAME"); err != nil {
		return nil, err
	}
	if err := str("RunN", 1, "Run name"); err != nil {
		return nil, err
	}
	if e := f.lookup("LANE", 1); e != nil {
		v, err := f.readInt16s(e)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			comments["LANE"] = fmt.Sprint(v[0])
		}
	}
	if e := f.lookup("S/N%", 1); e != nil {
		v, err := f.readInt16s(e)
		if err != nil {
			return nil, err
		}
		if len(v) < trace.NumChannels {
			return nil, errorf("S/N%% entry has %d values, want %d", len(v), trace.NumChannels)
		}
		var sn [trace.NumChannels]int
		for i, c := range order {
			sn[c] = v[i]
		}
		comments["SIGN"] = fmt.Sprintf("A=%d,C=%d,G=%d,T=%d", sn[0], sn[1], sn[2], sn[3])
	}
	if e := f.lookup("SPAC", 1); e != nil {
		v, err := f.readFloat32s(e)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			spacing := float64(v[0])
			// Some basecallers store a negative spacing; estimate it from the
			// calls instead.
			if spacing < 0 && len(positions) > 1 {
				spacing = float64(positions[len(positions)-1]-positions[0]) / float64(len(positions)-1)
			}
			if spacing >= 0 {
				comments["SPAC"] = fmt.Sprintf("%.2f", spacing)
			}
		}
	}

	dates, times := f.lookupAll("RUND"), f.lookupAll("RUNT")
	if len(dates) > 1 && len(times) > 1 {
		start, end, ok, err := f.readDateRange(1, 2)
		if err != nil {
			return nil, err
		}
		if ok {
			comments["RUND"] = start.Format(sortableTimeFormat) + " - " + end.Format(sortableTimeFormat)
			comments["DATE"] = start.Format(displayTimeFormat) + " to " + end.Format(displayTimeFormat)
		}
	}
	if len(dates) == 4 && len(times) == 4 {
		start, end, ok, err := f.readDateRange(3, 4)
		if err != nil {
			return nil, err
		}
		if ok {
			comments["Data coll. dates/times"] = start.Format(displayTimeFormat) + " to " + end.Format(displayTimeFormat)
		}
	}

	for _, s := range []struct {
		tag    string
		number uint32
		key    string
	}{
		{"PDMF", 1, "DYEP"}, // dye set/primer mobility file
		{"MCHN", 1, "MACH"}, // instrument name and serial number
		{"MODL", 1, "MODL"},
		{"SPAC", 2, "BCAL"}, // basecaller name
		{"SVER", 1, "VER1"}, // data collection software version
		{"SVER", 2, "VER2"}, // basecaller version
	} {
		if err := str(s.tag, s.number, s.key); err != nil {
			return nil, err
		}
	}
	if e := f.lookup("PSZE", 1); e != nil {
		v, err := f.readInt32s(e)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			comments["Plate size"] = fmt.Sprint(v[0])
		}
	}
	// GELN and MTXF are read by Staden but are absent from current ABIF
	// documentation.
	if err := str("GELN", 1, "GELN"); err != nil {
		return nil, err
	}
	if err := str("MTXF", 1, "MTXF"); err != nil {
		return nil, err
	}
	return comments, nil
}

// readDateRange reads the RUND/RUNT pairs with the given instance numbers.
// ok is false if any of the four entries is missing.
func (f *file) readDateRange(startNum, endNum uint32) (start, end time.Time, ok bool, err error) {
	sd, st := f.lookup("RUND", startNum), f.lookup("RUNT", startNum)
	ed, et := f.lookup("RUND", endNum), f.lookup("RUNT", endNum)
	if sd == nil || st == nil || ed == nil || et == nil {
		return
	}
	if start, err = f.readDateTime(sd, st); err != nil {
		return
	}
	if end, err = f.readDateTime(ed, et); err != nil {
		return
	}
	ok = true
	return
}
