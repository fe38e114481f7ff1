// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fasta writes sequences, typically the base calls of traces, in
// FASTA format.
package fasta

import (
	"io"

	"github.com/grailbio/seqtrace/encoding/trace"
)

// DefaultLineWidth is the number of bases per sequence line written by a
// Writer created with NewWriter.
const DefaultLineWidth = 60

var newline = []byte{'\n'}

// Writer is a FASTA file writer.
type Writer struct {
	w     io.Writer
	width int
	err   error
}

// Opts defines options for NewWriter.
type Opts struct {
	// LineWidth is the maximum number of bases per line.  If zero,
	// DefaultLineWidth is used.  If negative, each sequence is written on a
	// single line.
	LineWidth int
}

// NewWriter creates a writer that writes FASTA records to w.
func NewWriter(w io.Writer, opts ...Opts) *Writer {
	width := DefaultLineWidth
	if len(opts) > 0 && opts[0].LineWidth != 0 {
		width = opts[0].LineWidth
	}
	return &Writer{w: w, width: width}
}

// Write writes one record.  The description, if not empty, follows the name
// on the header line, separated by a space.  Once a write fails, all
// subsequent writes return the same error.
func (w *Writer) Write(name, description, seq string) error {
	header := ">" + name
	if description != "" {
		header += " " + description
	}
	w.writeln(header)
	if w.width < 0 {
		w.writeln(seq)
		return w.err
	}
	for len(seq) > w.width {
		w.writeln(seq[:w.width])
		seq = seq[w.width:]
	}
	if len(seq) > 0 {
		w.writeln(seq)
	}
	return w.err
}

// WriteTrace writes the base calls of t, in its current orientation, as one
// record.  If name is empty, t.FileName() is used.
func (w *Writer) WriteTrace(t *trace.Trace, name string) error {
	if name == "" {
		name = t.FileName()
	}
	var description string
	if t.IsReverseComplemented() {
		description = "reverse complemented"
	}
	return w.Write(name, description, t.BaseCalls())
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = io.WriteString(w.w, line); w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
