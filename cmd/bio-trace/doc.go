// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
bio-trace inspects and converts Sanger sequencing trace files in ZTR, ABI
(ABIF) and SCF formats.

  bio-trace info a.ab1 b.scf      # one-line summary per file
  bio-trace comments a.ab1        # key/value metadata as TSV
  bio-trace samples -base-calls a.ztr
  bio-trace fasta -revcomp -out reads.fa.gz *.ab1
  bio-trace fastq -out reads.fq *.scf
  bio-trace sam -out reads.bam *.ztr
  bio-trace checksum -hash farm a.ab1 a.ztr
  bio-trace compare a.ab1 a.scf

The input format is detected from the leading bytes of each file; -format
(ztr, abi or scf) overrides detection.  Outputs whose name ends in .gz are
gzip-compressed and those ending in .sz are snappy-compressed.
*/
package main
