// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ztr

import (
	"fmt"

	"github.com/grailbio/seqtrace/encoding/trace"
)

// VersionError is reported (wrapped in a trace.FormatError) when the file
// is not ZTR version 1.2.
type VersionError struct {
	Major, Minor int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("this file uses version %d.%d of the ZTR format; only version 1.2 is supported", e.Major, e.Minor)
}

// DataFormatError is reported when a chunk uses an unknown codec.
type DataFormatError struct {
	ID int
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("the ZTR data format ID %d is invalid or not supported", e.ID)
}

// MissingDataError is reported when a chunk is shorter than its header
// declares.
type MissingDataError struct {
	Expected, Actual int64
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("error reading ZTR data chunk: expected %d bytes but only got %d; the file appears to be damaged",
		e.Expected, e.Actual)
}

func wrap(err error) error {
	return trace.NewFormatError(trace.ZTR, err)
}

func errorf(format string, args ...interface{}) error {
	return trace.Errorf(trace.ZTR, format, args...)
}
