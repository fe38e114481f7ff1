// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq_test

import (
	"bytes"
	"testing"

	"github.com/grailbio/seqtrace/encoding/fastq"
	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/seqtrace/encoding/trace/tracetest"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestEncodeQual(t *testing.T) {
	expect.EQ(t, fastq.EncodeQual(0), byte('!'))
	expect.EQ(t, fastq.EncodeQual(-1), byte('!'))
	expect.EQ(t, fastq.EncodeQual(40), byte('I'))
	expect.EQ(t, fastq.EncodeQual(93), byte('~'))
	expect.EQ(t, fastq.EncodeQual(120), byte('~'))
}

func TestFromTrace(t *testing.T) {
	d := tracetest.Data()
	d.Confidence = []int{-3, 0, 40, 100}
	tr, err := trace.New(trace.SCF, "dir/r.scf", d)
	assert.NoError(t, err)

	r := fastq.FromTrace(tr, "")
	expect.EQ(t, *r, fastq.Read{ID: "r.scf", Seq: "ACGT", Qual: "!!I~"})

	tr.ReverseComplement()
	r = fastq.FromTrace(tr, "r/rc")
	expect.EQ(t, *r, fastq.Read{ID: "r/rc", Seq: "ACGT", Qual: "~I!!"})
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := fastq.NewWriter(&buf)
	assert.NoError(t, w.Write(&fastq.Read{ID: "r1", Seq: "ACGT", Qual: "IIII"}))
	assert.NoError(t, w.Write(&fastq.Read{ID: "r2", Seq: "", Qual: ""}))
	expect.EQ(t, buf.String(), "@r1\nACGT\n+\nIIII\n@r2\n\n+\n\n")
}
