// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq

import "io"

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format.  Once a write fails, all
// subsequent writes return the same error.
func (w *Writer) Write(r *Read) error {
	w.writeln("@", r.ID)
	w.writeln("", r.Seq)
	w.writeln("+", "")
	w.writeln("", r.Qual)
	return w.err
}

func (w *Writer) writeln(prefix, line string) {
	if w.err != nil {
		return
	}
	if prefix != "" {
		if _, w.err = io.WriteString(w.w, prefix); w.err != nil {
			return
		}
	}
	if _, w.err = io.WriteString(w.w, line); w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
