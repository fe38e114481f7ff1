// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/seqtrace/encoding/trace"
	"github.com/grailbio/seqtrace/encoding/traceprovider"
	"v.io/x/lib/cmdline"
)

const formatHelp = `Input trace format, one of "ztr", "abi" or "scf".
If empty, the format is detected from the leading bytes of each file.`

// loadOpts are the flags shared by all subcommands that read traces.
type loadOpts struct {
	format  string
	revcomp bool
}

func (o *loadOpts) register(cmd *cmdline.Command, withRevcomp bool) {
	cmd.Flags.StringVar(&o.format, "format", "", formatHelp)
	if withRevcomp {
		cmd.Flags.BoolVar(&o.revcomp, "revcomp", false, "Reverse complement each trace before writing it")
	}
}

// load reads the trace at path, applying the -format and -revcomp flags.
func (o loadOpts) load(ctx context.Context, path string) (*trace.Trace, error) {
	var popts traceprovider.Opts
	if o.format != "" {
		if popts.Format = traceprovider.ParseFormat(o.format); popts.Format == trace.Unknown {
			return nil, fmt.Errorf("unknown trace format \"%s\"", o.format)
		}
	}
	t, err := traceprovider.Load(ctx, path, popts)
	if err != nil {
		return nil, err
	}
	if o.revcomp {
		t.ReverseComplement()
	}
	return t, nil
}

func newCmdInfo() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "info",
		Short:    "Print a one-line summary of each trace file",
		ArgsName: "path...",
	}
	var opts loadOpts
	opts.register(cmd, false)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("info takes one or more pathnames, but got none")
		}
		return info(vcontext.Background(), env.Stdout, argv, opts)
	})
	return cmd
}

func newCmdComments() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "comments",
		Short:    "Print the metadata comments of a trace file as TSV",
		ArgsName: "path",
	}
	var opts loadOpts
	opts.register(cmd, false)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("comments takes one pathname argument, but got %v", argv)
		}
		return comments(vcontext.Background(), env.Stdout, argv[0], opts)
	})
	return cmd
}

func newCmdSamples() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "samples",
		Short:    "Print the channel intensities of a trace file as TSV",
		ArgsName: "path",
	}
	var opts samplesOpts
	opts.register(cmd, true)
	cmd.Flags.BoolVar(&opts.baseCalls, "base-calls", false, "Add a column with the base called at each sample, or '.'")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("samples takes one pathname argument, but got %v", argv)
		}
		return samples(vcontext.Background(), env.Stdout, argv[0], opts)
	})
	return cmd
}

func newCmdFasta() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "fasta",
		Short:    "Write the base calls of trace files in FASTA format",
		ArgsName: "path...",
	}
	var opts exportOpts
	opts.register(cmd, true)
	cmd.Flags.StringVar(&opts.out, "out", "", "Output path. If empty, write to stdout")
	cmd.Flags.IntVar(&opts.width, "width", 60, "Bases per line. 0 writes each sequence on one line")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("fasta takes one or more pathnames, but got none")
		}
		return exportFasta(vcontext.Background(), env.Stdout, argv, opts)
	})
	return cmd
}

func newCmdFastq() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "fastq",
		Short:    "Write the base calls and confidence scores of trace files in FASTQ format",
		ArgsName: "path...",
	}
	var opts exportOpts
	opts.register(cmd, true)
	cmd.Flags.StringVar(&opts.out, "out", "", "Output path. If empty, write to stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("fastq takes one or more pathnames, but got none")
		}
		return exportFastq(vcontext.Background(), env.Stdout, argv, opts)
	})
	return cmd
}

func newCmdSAM() *cmdline.Command {
	cmd := &cmdline.Command{
		Name: "sam",
		Short: `Write the base calls and confidence scores of trace files as unmapped SAM or BAM records.
The output is BAM if its name ends in .bam, SAM otherwise`,
		ArgsName: "path...",
	}
	var opts exportOpts
	opts.register(cmd, true)
	cmd.Flags.StringVar(&opts.out, "out", "", "Output path. If empty, write SAM to stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("sam takes one or more pathnames, but got none")
		}
		return exportSAM(vcontext.Background(), env.Stdout, argv, opts)
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name: "checksum",
		Short: `Compute a checksum of trace files.
The checksum is a JSON string summarizing the base calls, positions,
confidence scores and channels. Traces that decode identically have equal
checksums regardless of their file format`,
		ArgsName: "path...",
	}
	var opts checksumOpts
	opts.register(cmd, false)
	cmd.Flags.StringVar(&opts.hash, "hash", "seahash", `Hash function, one of "seahash", "farm" or "highway"`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("checksum takes one or more pathnames, but got none")
		}
		return checksum(vcontext.Background(), env.Stdout, argv, opts)
	})
	return cmd
}

func newCmdCompare() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "compare",
		Short:    "Compare the base calls of two trace files",
		ArgsName: "path0 path1",
	}
	var opts loadOpts
	opts.register(cmd, false)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("compare takes two pathnames, but got %v", argv)
		}
		return compare(vcontext.Background(), env.Stdout, argv[0], argv[1], opts)
	})
	return cmd
}

// Run runs the bio-trace command.
func Run() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-trace",
			Short:    "Tools for working with ZTR, ABI and SCF sequencing trace files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdInfo(),
				newCmdComments(),
				newCmdSamples(),
				newCmdFasta(),
				newCmdFastq(),
				newCmdSAM(),
				newCmdChecksum(),
				newCmdCompare(),
			},
		})
}
