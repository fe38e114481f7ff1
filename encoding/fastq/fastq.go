// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fastq exports the base calls and confidence scores of a trace as
// FASTQ reads.
package fastq

import (
	"github.com/grailbio/seqtrace/encoding/trace"
)

const (
	// MaxQual is the highest quality that can be written.  Higher confidence
	// scores are clamped to it.
	MaxQual = 93
	// QualOffset is added to each quality to produce its FASTQ character.
	QualOffset = 33
)

// A Read is a FASTQ read: an ID, the sequence, and a quality string of the
// same length.  ID does not include the leading '@'.
type Read struct {
	ID, Seq, Qual string
}

// FromTrace builds a read from the base calls and confidence scores of t,
// in t's current orientation.  If id is empty, t.FileName() is used.
func FromTrace(t *trace.Trace, id string) *Read {
	if id == "" {
		id = t.FileName()
	}
	conf := t.Confidence()
	qual := make([]byte, len(conf))
	for i, q := range conf {
		qual[i] = EncodeQual(q)
	}
	return &Read{ID: id, Seq: t.BaseCalls(), Qual: string(qual)}
}

// EncodeQual returns the Phred+33 character for quality q, clamped to
// [0, MaxQual].
func EncodeQual(q int) byte {
	switch {
	case q < 0:
		q = 0
	case q > MaxQual:
		q = MaxQual
	}
	return byte(q + QualOffset)
}
