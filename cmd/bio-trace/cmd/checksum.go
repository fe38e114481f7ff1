// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"blainsmith.com/go/seahash"
	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/minio/highwayhash"
)

type checksumOpts struct {
	loadOpts
	// hash names the hash function: "seahash", "farm" or "highway".
	hash string
}

// hashFunc computes a 64-bit digest.
type hashFunc func(data []byte) uint64

var highwayKey = make([]byte, highwayhash.Size)

func newHashFunc(name string) (hashFunc, error) {
	switch name {
	case "", "seahash":
		return seahash.Sum64, nil
	case "farm":
		return farm.Hash64, nil
	case "highway":
		return func(data []byte) uint64 { return highwayhash.Sum64(data, highwayKey) }, nil
	default:
		return nil, fmt.Errorf("unknown hash function \"%s\"", name)
	}
}

// traceChecksum is the checksum of one trace.  The path aside, it depends
// only on the decoded contents, so the same read stored in different
// formats yields equal checksums.
type traceChecksum struct {
	// Path is the trace file path.
	Path string
	// Len is the number of samples per channel.
	Len int
	// NBases is the number of base calls.
	NBases int
	// Bases is the hash of the base call string.
	Bases uint64
	// Positions is the hash of the base call positions.
	Positions uint64
	// Confidence is the hash of the confidence scores.
	Confidence uint64
	// Channels are the hashes of the A, C, G and T channels.
	Channels [trace.NumChannels]uint64
}

// hashInts hashes vals encoded as little-endian 32-bit integers.
func hashInts(h hashFunc, vals []int) uint64 {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return h(buf)
}

func newTraceChecksum(t *trace.Trace, h hashFunc) traceChecksum {
	c := traceChecksum{
		Path:       t.Path(),
		Len:        t.Len(),
		NBases:     t.NumBaseCalls(),
		Bases:      h(unsafe.StringToBytes(t.BaseCalls())),
		Positions:  hashInts(h, t.Positions()),
		Confidence: hashInts(h, t.Confidence()),
	}
	for i := range c.Channels {
		c.Channels[i] = hashInts(h, t.Channel(trace.Bases[i]))
	}
	return c
}

// checksum computes the checksums of the traces at paths in parallel and
// writes them to w as a JSON array, in the order of paths.
func checksum(ctx context.Context, w io.Writer, paths []string, opts checksumOpts) error {
	h, err := newHashFunc(opts.hash)
	if err != nil {
		return err
	}
	var (
		csums = make([]traceChecksum, len(paths))
		errs  errors.Once
		done  = make(chan struct{}, len(paths))
	)
	for i := range paths {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			t, err := opts.load(ctx, paths[i])
			if err != nil {
				errs.Set(err)
				return
			}
			csums[i] = newTraceChecksum(t, h)
		}(i)
	}
	for range paths {
		<-done
	}
	if err := errs.Err(); err != nil {
		return err
	}
	js, err := json.MarshalIndent(csums, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(js))
	return err
}
