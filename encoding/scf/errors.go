// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scf

import (
	"fmt"
	"strings"

	"github.com/grailbio/seqtrace/encoding/trace"
)

// VersionError is reported (wrapped in a trace.FormatError) when the
// version field of the header is not one of the supported versions.  Major
// is the first character of the field and Minor the characters after the
// separator.
type VersionError struct {
	Major, Minor string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("this file uses version %s.%s of the SCF format; supported versions are %s",
		e.Major, e.Minor, strings.Join(Versions, ", "))
}

// DataError is reported when a section of the file is shorter than the
// header says.
type DataError struct {
	Expected, Actual int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("error reading SCF file data: expected %d bytes but got %d; the file appears to be damaged",
		e.Expected, e.Actual)
}

func wrap(err error) error {
	return trace.NewFormatError(trace.SCF, err)
}

func errorf(format string, args ...interface{}) error {
	return trace.Errorf(trace.SCF, format, args...)
}
