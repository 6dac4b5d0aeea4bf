package nascent

import (
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/nascent/encoding/bam"
	"github.com/grailbio/nascent/strandedness"
)

// DefaultFlushInterval is the default value of Opts.FlushInterval.
const DefaultFlushInterval = 1000000

// logInterval is the number of records between progress messages.
const logInterval = 1000000

// Output file names, relative to Opts.OutputDir.
const (
	ForwardBAMName            = "forward.bam"
	ReverseBAMName            = "reverse.bam"
	ForwardPairsName          = "forward_pairs.bed"
	ReversePairsName          = "reverse_pairs.bed"
	ForwardNascentIntronsName = "forward_nascent_introns.bed"
	ReverseNascentIntronsName = "reverse_nascent_introns.bed"
	SummaryName               = "read_counts.json"
)

// Opts configures Run.
type Opts struct {
	// BAMPath is the coordinate-sorted input (BAM, or SAM by suffix).
	BAMPath string
	// OutputDir receives all outputs.  It must exist when local.
	OutputDir string
	// Protocol is the library strandedness; Type1 or Type2.
	Protocol strandedness.Protocol
	// IntronsPath is a six-column BED file of introns.
	IntronsPath string
	// FAIPath is the .fai index of the reference; it supplies chromosome
	// lengths.
	FAIPath string

	// FlushInterval is the number of input records between flushes of the
	// pending intervals to the BED files.  Defaults to DefaultFlushInterval.
	FlushInterval int
	// SortIntervals sorts each BED file by (reference order, start, end)
	// after the main pass.  Otherwise intervals appear in the order their
	// pairs were completed.
	SortIntervals bool
	// CompressIntervals writes BGZF-compressed ".bed.gz" files.
	CompressIntervals bool

	// SortBatchSize, TmpDir and Parallelism are passed to the BAM sorter.
	SortBatchSize int
	TmpDir        string
	Parallelism   int
}

func validate(opts *Opts) error {
	if opts.BAMPath == "" {
		return errors.E(errors.Invalid, "you must specify an input bam file")
	}
	if opts.OutputDir == "" {
		return errors.E(errors.Invalid, "you must specify an output folder")
	}
	if opts.Protocol != strandedness.Type1 && opts.Protocol != strandedness.Type2 {
		return errors.E(errors.Invalid, "strandedness type must be 1 or 2, got "+opts.Protocol.String())
	}
	if opts.IntronsPath == "" {
		return errors.E(errors.Invalid, "you must specify an introns bed file")
	}
	if opts.FAIPath == "" {
		return errors.E(errors.Invalid, "you must specify a fasta index file")
	}
	if opts.FlushInterval < 0 {
		return errors.E(errors.Invalid, "flush interval must be non-negative")
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return nil
}

func (opts *Opts) sortOptions() bam.SortOptions {
	return bam.SortOptions{
		SortBatchSize: opts.SortBatchSize,
		TmpDir:        opts.TmpDir,
		Parallelism:   opts.Parallelism,
	}
}

// bedPath returns the path of the named BED output.
func (opts *Opts) bedPath(name string) string {
	path := opts.outputPath(name)
	if opts.CompressIntervals {
		path += ".gz"
	}
	return path
}

// outputPath joins OutputDir and name.  filepath.Join would mangle
// "s3://" prefixes.
func (opts *Opts) outputPath(name string) string {
	return strings.TrimSuffix(opts.OutputDir, "/") + "/" + name
}
