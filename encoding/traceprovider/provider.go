// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package traceprovider detects the format of a sequencing trace file and
// decodes it with the matching decoder.
package traceprovider

import (
	"bytes"
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/seqtrace/encoding/abif"
	"github.com/grailbio/seqtrace/encoding/scf"
	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/seqtrace/encoding/ztr"
	"v.io/x/lib/vlog"
)

// Decoder decodes one trace file format.  Implementations are stateless and
// may be used concurrently.
type Decoder interface {
	// Format returns the format decoded.
	Format() trace.Format
	// Decode reads a complete trace from r.  Path is recorded in the trace
	// and used in error messages.
	Decode(r io.ReadSeeker, path string) (*trace.Trace, error)
}

// Opts defines options for Load.
type Opts struct {
	// Format forces the use of a particular decoder.  If Format==Unknown, the
	// format is detected from the leading bytes of the file.
	Format trace.Format
}

// sniffLen is the number of leading bytes needed to tell the formats apart.
const sniffLen = 8

// ParseFormat parses a format name: "ztr", "abi" (or "ab1", "abif") and
// "scf".  On error, it returns Unknown.
func ParseFormat(name string) trace.Format {
	switch name {
	case "ztr":
		return trace.ZTR
	case "abi", "ab1", "abif":
		return trace.ABI
	case "scf":
		return trace.SCF
	default:
		return trace.Unknown
	}
}

// Sniff classifies a file by its leading bytes.
func Sniff(header []byte) trace.Format {
	switch {
	case bytes.HasPrefix(header, abif.Magic):
		return trace.ABI
	case bytes.HasPrefix(header, ztr.Magic):
		return trace.ZTR
	case bytes.HasPrefix(header, scf.Magic):
		return trace.SCF
	default:
		return trace.Unknown
	}
}

// NewDecoder returns the decoder for format f, or nil if f is Unknown.
func NewDecoder(f trace.Format) Decoder {
	switch f {
	case trace.ZTR:
		return ztr.Decoder{}
	case trace.ABI:
		return abif.Decoder{}
	case trace.SCF:
		return scf.Decoder{}
	default:
		return nil
	}
}

// readHeader reads up to sniffLen bytes from r.  A file shorter than that
// is not an error; it just will not match any format.
func readHeader(r io.Reader) ([]byte, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return buf[:n], err
}

// DetectFormat reads the first bytes of the file at path and reports its
// format, or Unknown.  It returns an *trace.IOError if the file cannot be
// read.
func DetectFormat(ctx context.Context, path string) (format trace.Format, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return trace.Unknown, &trace.IOError{Path: path, Err: err}
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = &trace.IOError{Path: path, Err: e}
		}
	}()
	header, err := readHeader(in.Reader(ctx))
	if err != nil {
		return trace.Unknown, &trace.IOError{Path: path, Err: err}
	}
	format = Sniff(header)
	if format == trace.Unknown {
		vlog.VI(1).Infof("%s: unrecognized trace header %q", path, header)
	}
	return format, nil
}

// Load opens the trace file at path, detects its format (unless
// opts.Format is set), and decodes it.  The file is read once and closed
// before Load returns.
//
// Errors are *trace.IOError if the file cannot be read,
// *trace.UnknownFileTypeError if the format is not recognized, and
// *trace.FormatError if the file is malformed.
func Load(ctx context.Context, path string, opts ...Opts) (t *trace.Trace, err error) {
	var o Opts
	if len(opts) > 0 {
		o = opts[0]
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, &trace.IOError{Path: path, Err: err}
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			t, err = nil, &trace.IOError{Path: path, Err: e}
		}
	}()
	r := in.Reader(ctx)

	format := o.Format
	if format == trace.Unknown {
		header, err := readHeader(r)
		if err != nil {
			return nil, &trace.IOError{Path: path, Err: err}
		}
		if format = Sniff(header); format == trace.Unknown {
			vlog.VI(1).Infof("%s: unrecognized trace header %q", path, header)
			return nil, &trace.UnknownFileTypeError{Path: path}
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, &trace.IOError{Path: path, Err: err}
		}
	}
	dec := NewDecoder(format)
	if dec == nil {
		return nil, &trace.UnknownFileTypeError{Path: path}
	}
	vlog.VI(1).Infof("%s: decoding as %v", path, format)
	return dec.Decode(r, path)
}
