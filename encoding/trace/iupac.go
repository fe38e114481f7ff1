// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trace

// Bases lists the channel bases in channel order.
const Bases = "ACGT"

// NumChannels is the number of fluorescence channels in a trace.
const NumChannels = len(Bases)

// complementTable maps each IUPAC nucleotide code to the code for the
// complementary base set. Case is preserved. Bytes that are not IUPAC codes
// map to themselves.
var complementTable = func() (t [256]byte) {
	for i := range t {
		t[i] = byte(i)
	}
	for _, p := range [...][2]byte{
		{'A', 'T'}, {'C', 'G'}, {'W', 'W'}, {'S', 'S'}, {'M', 'K'},
		{'R', 'Y'}, {'B', 'V'}, {'D', 'H'}, {'N', 'N'},
	} {
		t[p[0]], t[p[1]] = p[1], p[0]
		t[p[0]|0x20], t[p[1]|0x20] = p[1]|0x20, p[0]|0x20
	}
	return
}()

// ambiguitySets maps each upper-case IUPAC ambiguity code to the
// unambiguous bases it stands for, in channel order.
var ambiguitySets = map[byte]string{
	'W': "AT",
	'S': "CG",
	'M': "AC",
	'K': "GT",
	'R': "AG",
	'Y': "CT",
	'B': "CGT",
	'D': "AGT",
	'H': "ACT",
	'V': "ACG",
	'N': "ACGT",
}

// Complement returns the IUPAC complement of a nucleotide code.
func Complement(b byte) byte { return complementTable[b] }

// AmbiguityBases returns the bases represented by the upper-case ambiguity
// code b, or "" if b is not an ambiguity code.  Unambiguous bases are not
// ambiguity codes.
func AmbiguityBases(b byte) string { return ambiguitySets[b] }

// ChannelIndex returns the channel index (0..3) of base b, which may be
// upper or lower case, or -1 if b is not one of A, C, G, T.
func ChannelIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	}
	return -1
}

// ReverseComplementSequence returns the reverse complement of seq.  All
// IUPAC ambiguity codes are supported.
func ReverseComplementSequence(seq string) string {
	b := []byte(seq)
	reverseComplementInplace(b)
	return string(b)
}

func reverseComplementInplace(seq []byte) {
	n := len(seq)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		seq[i], seq[j] = complementTable[seq[j]], complementTable[seq[i]]
	}
	if n&1 == 1 {
		seq[n>>1] = complementTable[seq[n>>1]]
	}
}
