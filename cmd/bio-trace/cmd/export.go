// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/seqtrace/encoding/fasta"
	"github.com/grailbio/seqtrace/encoding/fastq"
	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

type exportOpts struct {
	loadOpts
	// out is the output path. If empty, output goes to the command's stdout.
	out string
	// width is the FASTA line width. 0 means one line per sequence.
	width int
}

// output is a destination opened by createOutput.
type output struct {
	io.Writer
	closers []func() error
}

// createOutput opens path for writing.  A path ending in .gz is
// gzip-compressed and one ending in .sz is snappy-compressed.  If path is
// empty, the output is stdout, which is not closed.
func createOutput(ctx context.Context, path string, stdout io.Writer) (*output, error) {
	if path == "" {
		return &output{Writer: stdout}, nil
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	o := &output{
		Writer:  f.Writer(ctx),
		closers: []func() error{func() error { return f.Close(ctx) }},
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(o.Writer)
		o.Writer = gz
		o.closers = append(o.closers, gz.Close)
	case strings.HasSuffix(path, ".sz"):
		sz := snappy.NewBufferedWriter(o.Writer)
		o.Writer = sz
		o.closers = append(o.closers, sz.Close)
	}
	return o, nil
}

// Close flushes and closes the output, innermost writer first.  It returns
// the first error encountered.
func (o *output) Close() (err error) {
	for i := len(o.closers) - 1; i >= 0; i-- {
		if e := o.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	return
}

// closeOutput closes o and sets *err if it is not already set.
func closeOutput(o *output, path string, err *error) {
	if e := o.Close(); e != nil && *err == nil {
		*err = errors.Wrapf(e, "close %s", path)
	}
}

// exportFasta writes the base calls of the traces at paths as FASTA records
// named after the trace files.
func exportFasta(ctx context.Context, stdout io.Writer, paths []string, opts exportOpts) (err error) {
	var o *output
	if o, err = createOutput(ctx, opts.out, stdout); err != nil {
		return
	}
	defer closeOutput(o, opts.out, &err)
	width := opts.width
	if width == 0 {
		width = -1
	}
	w := fasta.NewWriter(o, fasta.Opts{LineWidth: width})
	for _, path := range paths {
		var t *trace.Trace
		if t, err = opts.load(ctx, path); err != nil {
			return
		}
		if err = w.WriteTrace(t, ""); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}

// exportFastq writes the base calls and confidence scores of the traces at
// paths as FASTQ reads named after the trace files.
func exportFastq(ctx context.Context, stdout io.Writer, paths []string, opts exportOpts) (err error) {
	var o *output
	if o, err = createOutput(ctx, opts.out, stdout); err != nil {
		return
	}
	defer closeOutput(o, opts.out, &err)
	w := fastq.NewWriter(o)
	for _, path := range paths {
		var t *trace.Trace
		if t, err = opts.load(ctx, path); err != nil {
			return
		}
		if err = w.Write(fastq.FromTrace(t, "")); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}

// samRecord converts t to an unmapped SAM record named after the trace file.
// Qualities are the confidence scores, clamped to the FASTQ range.
func samRecord(t *trace.Trace) (*sam.Record, error) {
	conf := t.Confidence()
	qual := make([]byte, len(conf))
	for i, q := range conf {
		qual[i] = fastq.EncodeQual(q) - fastq.QualOffset
	}
	r, err := sam.NewRecord(t.FileName(), nil, nil, -1, -1, 0, 0, nil, []byte(t.BaseCalls()), qual, nil)
	if err != nil {
		return nil, err
	}
	r.Flags = sam.Unmapped
	return r, nil
}

type recordWriter interface {
	Write(r *sam.Record) error
}

// exportSAM writes the traces at paths as unmapped records.  The output is
// BAM if opts.out ends in .bam, SAM otherwise.
func exportSAM(ctx context.Context, stdout io.Writer, paths []string, opts exportOpts) (err error) {
	isBAM := strings.HasSuffix(opts.out, ".bam")
	var o *output
	if o, err = createOutput(ctx, opts.out, stdout); err != nil {
		return
	}
	defer closeOutput(o, opts.out, &err)

	var header *sam.Header
	if header, err = sam.NewHeader(nil, nil); err != nil {
		return
	}
	var w recordWriter
	if isBAM {
		var bw *bam.Writer
		if bw, err = bam.NewWriter(o, header, 1); err != nil {
			return
		}
		defer func() {
			if e := bw.Close(); e != nil && err == nil {
				err = errors.Wrapf(e, "close %s", opts.out)
			}
		}()
		w = bw
	} else {
		if w, err = sam.NewWriter(o, header, sam.FlagDecimal); err != nil {
			return
		}
	}
	for _, path := range paths {
		var t *trace.Trace
		if t, err = opts.load(ctx, path); err != nil {
			return
		}
		var r *sam.Record
		if r, err = samRecord(t); err != nil {
			return errors.Wrapf(err, "convert %s", path)
		}
		if err = w.Write(r); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}
