// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trace

import (
	"errors"
	"fmt"
)

// IOError is returned when a trace file cannot be opened or read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *IOError) Unwrap() error { return e.Err }

// UnknownFileTypeError is returned when the leading bytes of a file match
// none of the supported trace formats.
type UnknownFileTypeError struct {
	Path string
}

func (e *UnknownFileTypeError) Error() string {
	return fmt.Sprintf("%s: the file format was not recognized; please convert the file to ZTR, ABI or SCF", e.Path)
}

// FormatError reports a structural problem found while decoding a file of a
// particular format. Err holds the detail; it is either a plain error or one
// of the structured error types defined by the format's decoder package
// (e.g. *ztr.VersionError), which can be retrieved with errors.As.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: %v", e.Format, e.Err)
}

// Unwrap returns the detailed cause.
func (e *FormatError) Unwrap() error { return e.Err }

// NewFormatError wraps err as a FormatError for format f.
func NewFormatError(f Format, err error) error {
	return &FormatError{Format: f, Err: err}
}

// Errorf creates a FormatError for format f with a formatted message.
func Errorf(f Format, format string, args ...interface{}) error {
	return &FormatError{Format: f, Err: fmt.Errorf(format, args...)}
}

// IsFormatError reports whether err is a FormatError for format f.
func IsFormatError(err error, f Format) bool {
	var fe *FormatError
	return errors.As(err, &fe) && fe.Format == f
}
