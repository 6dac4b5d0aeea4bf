package main

/*
bio-strandedness infers the library strandedness protocol of a batch of
samples from the per-gene read counts written by the STAR aligner
(ReadsPerGene.out.tab), and writes the verdict to
<output-folder>/strandedness_info.json.

Each sample votes using the N_unmapped row of its table: protocol 1 if the
stranded (column 3) count is below the reverse-stranded (column 4) count,
and protocol 2 otherwise.
The batch is protocol 1 or 2 if the vote is unanimous, and 0 (undetermined)
otherwise.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/nascent/strandedness"
)

var (
	inputFolder  = flag.String("input-folder", "", "Folder whose sub-folders hold ReadsPerGene.out.tab files")
	outputFolder = flag.String("output-folder", "", "Folder to write strandedness_info.json to")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -input-folder <dir> -output-folder <dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()

	if *inputFolder == "" || *outputFolder == "" {
		flag.Usage()
		os.Exit(1)
	}
	ctx := vcontext.Background()
	info, err := strandedness.Infer(ctx, *inputFolder)
	if err != nil {
		log.Fatalf("%v", err)
	}
	path := strings.TrimSuffix(*outputFolder, "/") + "/" + strandedness.InfoFileName
	if err := strandedness.WriteInfo(ctx, path, info); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("strandedness: %v", info)
}
