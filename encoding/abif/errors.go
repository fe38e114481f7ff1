// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package abif

import (
	"fmt"

	"github.com/grailbio/seqtrace/encoding/trace"
)

// VersionError is reported (wrapped in a trace.FormatError) when the file
// is not ABIF version 1.x.
type VersionError struct {
	Major, Minor int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("this file uses version %d.%d of the ABI format; only version 1.x is supported", e.Major, e.Minor)
}

// IndexError is reported when the directory of the file cannot be read.
// Entry is the 0-based number of the entry that failed.
type IndexError struct {
	Entry, Total int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("error reading ABI file index entry %d of %d expected entries; the file might be damaged",
		e.Entry, e.Total)
}

// DataError is reported when an entry's data length does not match the
// number of bytes that could be read for it.
type DataError struct {
	Expected, Actual int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("error reading ABI file data: expected %d bytes but got %d; the file appears to be damaged",
		e.Expected, e.Actual)
}

func wrap(err error) error {
	return trace.NewFormatError(trace.ABI, err)
}

func errorf(format string, args ...interface{}) error {
	return trace.Errorf(trace.ABI, format, args...)
}
