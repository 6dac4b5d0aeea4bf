package main

/*
bio-nascent extracts the covered intervals of properly paired reads from a
coordinate-sorted BAM file, splits them by transcription strand, and reports
the part of each intron that a read pair shows as already transcribed.

Outputs, all under -output-folder:

  forward_pairs.bed, reverse_pairs.bed
  forward_nascent_introns.bed, reverse_nascent_introns.bed
  read_counts.json
  forward.bam, reverse.bam (sorted, with .bai indexes)

Usage:

  bio-nascent -input-folder sample1 -output-folder out \
    -strandedness-type 1 -introns-bed-file introns.bed -fai-index-file hg38.fa.fai
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/nascent/encoding/bam"
	"github.com/grailbio/nascent/nascent"
	"github.com/grailbio/nascent/strandedness"
)

var (
	inputFolder       = flag.String("input-folder", "", "Folder holding the aligner output")
	bamFileName       = flag.String("bam-file-name", "Aligned.sortedByCoord.out.bam", "Name of the coordinate-sorted BAM file in -input-folder")
	bamPath           = flag.String("bam", "", "Input BAM or SAM path; overrides -input-folder and -bam-file-name")
	outputFolder      = flag.String("output-folder", "", "Output folder")
	strandednessType  = flag.String("strandedness-type", "", "Library strandedness, 1 or 2 (see bio-strandedness)")
	intronsBEDFile    = flag.String("introns-bed-file", "", "Six-column BED file of introns")
	faiIndexFile      = flag.String("fai-index-file", "", "FASTA index (.fai) of the reference the reads were aligned to")
	flushInterval     = flag.Int("flush-interval", nascent.DefaultFlushInterval, "Number of input records between flushes of the BED outputs")
	sortIntervals     = flag.Bool("sort-intervals", false, "Sort the BED outputs by reference order, start and end")
	compressIntervals = flag.Bool("compress-intervals", false, "Write BGZF-compressed .bed.gz outputs")
	sortBatchSize     = flag.Int("sort-batch-size", bam.DefaultSortBatchSize, "Number of records per in-memory sort batch for the BAM outputs")
	tmpDir            = flag.String("tmp-dir", "", "Directory for temporary sort files (default os.TempDir())")
	parallelism       = flag.Int("parallelism", bam.DefaultParallelism, "Number of concurrent sort batches, and BGZF compression threads per BAM output")
)

func bioNascentUsage() {
	fmt.Printf("Usage: %s [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioNascentUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("Unexpected positional arguments: '%s'", strings.Join(flag.Args(), " "))
	}
	protocol, err := strandedness.ParseProtocol(*strandednessType)
	if err != nil {
		log.Fatalf("-strandedness-type: %v", err)
	}
	path := *bamPath
	if path == "" {
		if *inputFolder == "" {
			log.Fatalf("you must specify -input-folder or -bam")
		}
		path = strings.TrimSuffix(*inputFolder, "/") + "/" + *bamFileName
	}
	opts := nascent.Opts{
		BAMPath:           path,
		OutputDir:         *outputFolder,
		Protocol:          protocol,
		IntronsPath:       *intronsBEDFile,
		FAIPath:           *faiIndexFile,
		FlushInterval:     *flushInterval,
		SortIntervals:     *sortIntervals,
		CompressIntervals: *compressIntervals,
		SortBatchSize:     *sortBatchSize,
		TmpDir:            *tmpDir,
		Parallelism:       *parallelism,
	}
	if _, err := nascent.Run(vcontext.Background(), opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("All done")
}
