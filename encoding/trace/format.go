// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trace

import "fmt"

// Format identifies the container format of a trace file.
type Format int

const (
	// Unknown is a sentinel.
	Unknown Format = iota
	// ZTR is the Staden package's chunked, compressed trace format.
	ZTR
	// ABI is the Applied Biosystems ABIF indexed container (.ab1).
	ABI
	// SCF is the Standard Chromatogram Format, versions 3.00 and 3.10.
	SCF
)

// String returns the lower-case name of the format.
func (f Format) String() string {
	switch f {
	case ZTR:
		return "ztr"
	case ABI:
		return "abi"
	case SCF:
		return "scf"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}
