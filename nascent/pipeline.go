package nascent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/nascent/encoding/bam"
	"github.com/grailbio/nascent/encoding/bamprovider"
	"github.com/grailbio/nascent/encoding/bed"
	"github.com/grailbio/nascent/encoding/fasta"
	"github.com/grailbio/nascent/interval"
	"github.com/grailbio/nascent/intron"
)

// Summary is the content of read_counts.json.  Each count is twice the
// number of pairs classified on that strand.
type Summary struct {
	SelectedReadsForward int64 `json:"selected_reads_forward"`
	SelectedReadsReverse int64 `json:"selected_reads_reverse"`
}

// Counts describes one run.  Only the Summary is written to disk; the rest
// is logged.
type Counts struct {
	Summary

	// Records is the number of records read by the main pass.
	Records int64
	// SecondaryReads is the number of names excluded by the pre-scan.
	SecondaryReads int
	// SkippedInvalid is the number of main-pass records whose name was
	// excluded by the pre-scan.
	SkippedInvalid int64
	// Unpaired is the number of records with neither the read-1 nor the
	// read-2 flag.  Their names are excluded from the partitions.
	Unpaired int64
	// ChromMismatch is the number of pairs dropped because their mates map to
	// different chromosomes.
	ChromMismatch int64
	// ForwardPairs and ReversePairs count classified pairs.
	ForwardPairs int64
	ReversePairs int64
	// UnmappedPairs is the number of pairs dropped because a mate is
	// unmapped or the pair has no aligned block.
	UnmappedPairs int64
	// ForwardNascent and ReverseNascent count nascent-intron ranges.
	ForwardNascent int64
	ReverseNascent int64
	// UnresolvedMates is the number of records whose mate never appeared.
	UnresolvedMates int
	// ForwardRecords and ReverseRecords count the records written to the
	// BAM partitions.
	ForwardRecords int64
	ReverseRecords int64
}

// Run executes the whole pipeline configured by opts.
func Run(ctx context.Context, opts Opts) (Counts, error) {
	if err := validate(&opts); err != nil {
		return Counts{}, err
	}
	lengths, err := fasta.ReadIndexFile(ctx, opts.FAIPath)
	if err != nil {
		return Counts{}, err
	}
	introns, err := bed.ReadIntronsFile(ctx, opts.IntronsPath)
	if err != nil {
		return Counts{}, err
	}
	idx, err := intron.NewIndex(introns, lengths)
	if err != nil {
		return Counts{}, err
	}
	provider := bamprovider.NewProvider(opts.BAMPath)
	counts, err := Process(ctx, provider, idx, opts, fasta.RefOrder(lengths))
	if e := provider.Close(); e != nil && err == nil {
		err = errors.E(e, opts.BAMPath)
	}
	return counts, err
}

// Process runs the passes over provider.  idx must cover the chromosomes the
// reads map to.  refOrder orders chromosomes when opts.SortIntervals is set.
func Process(ctx context.Context, provider bamprovider.Provider, idx *intron.Index, opts Opts, refOrder map[string]int) (Counts, error) {
	if err := validate(&opts); err != nil {
		return Counts{}, err
	}
	invalid, err := ScanInvalid(provider)
	if err != nil {
		return Counts{}, err
	}
	counts := Counts{SecondaryReads: invalid.Len()}
	if err := mainPass(ctx, provider, idx, invalid, &opts, &counts); err != nil {
		return counts, err
	}
	if opts.SortIntervals {
		for _, name := range bedNames {
			if err := bed.SortFile(ctx, opts.bedPath(name), refOrder, opts.CompressIntervals); err != nil {
				return counts, err
			}
		}
	}
	if err := writeSummary(ctx, opts.outputPath(SummaryName), counts.Summary); err != nil {
		return counts, err
	}
	if err := partition(ctx, provider, invalid, &opts, &counts); err != nil {
		return counts, err
	}
	log.Printf("sorting and indexing output bam files")
	bams := []string{opts.outputPath(ForwardBAMName), opts.outputPath(ReverseBAMName)}
	if err := bam.SortAndIndexAll(ctx, bams, opts.sortOptions()); err != nil {
		return counts, err
	}
	log.Printf("extracting pairs and nascent introns finished: %+v", counts)
	return counts, nil
}

// bedNames is indexed by outputKind.
var bedNames = [numOutputs]string{
	forwardPairs:   ForwardPairsName,
	reversePairs:   ReversePairsName,
	forwardNascent: ForwardNascentIntronsName,
	reverseNascent: ReverseNascentIntronsName,
}

// refName returns the reference name of rec, or "*" if it has none.
func refName(rec *sam.Record) string {
	if rec.Ref == nil {
		return "*"
	}
	return rec.Ref.Name()
}

func mainPass(ctx context.Context, provider bamprovider.Provider, idx *intron.Index, invalid InvalidSet, opts *Opts, counts *Counts) (err error) {
	var writers [numOutputs]*bed.Writer
	defer func() {
		for _, w := range writers {
			if w == nil {
				continue
			}
			if e := w.Close(ctx); e != nil && err == nil {
				err = e
			}
		}
	}()
	for k, name := range bedNames {
		if writers[k], err = bed.Create(ctx, opts.bedPath(name), opts.CompressIntervals); err != nil {
			return err
		}
	}
	acc := newAccumulator(writers)
	mates := newMateBuffer()

	iter := provider.NewIterator()
	for iter.Scan() {
		if counts.Records%int64(opts.FlushInterval) == 0 {
			if err = acc.flush(); err != nil {
				break
			}
		}
		if counts.Records%logInterval == 0 {
			log.Printf("computing covered intervals: %d reads, %d waiting for mates", counts.Records, mates.pending())
		}
		counts.Records++
		rec := iter.Record()
		if invalid.Contains(rec.Name) {
			counts.SkippedInvalid++
			continue
		}
		pair, result := mates.add(rec)
		switch result {
		case stashed:
			continue
		case unpaired:
			invalid.Add(rec.Name)
			counts.Unpaired++
			continue
		}
		if unmapped(pair) {
			invalid.Add(pair.R1.Name)
			counts.UnmappedPairs++
			continue
		}
		if chrom1, chrom2 := refName(pair.R1), refName(pair.R2); chrom1 != chrom2 {
			invalid.Add(pair.R1.Name)
			counts.ChromMismatch++
			log.Debug.Printf("%v", errors.E(errors.Integrity,
				fmt.Sprintf("read %s: mates map to %s and %s, excluded", pair.R1.Name, chrom1, chrom2)))
			continue
		}
		if err = processPair(pair, idx, opts, invalid, acc, counts); err != nil {
			break
		}
	}
	if e := iter.Close(); e != nil && err == nil {
		err = errors.E(e, "main pass")
	}
	if err != nil {
		return err
	}
	counts.UnresolvedMates = mates.pending()
	if counts.UnresolvedMates > 0 {
		log.Printf("%d reads have no mate in the input", counts.UnresolvedMates)
	}
	mates.clear()
	if err = acc.flush(); err != nil {
		return err
	}
	counts.SelectedReadsForward = acc.selectedForward
	counts.SelectedReadsReverse = acc.selectedReverse
	return nil
}

// unmapped reports whether a mate of pair is unmapped.  Such pairs are not
// partitioned: the partition pass classifies each record by its own flags.
func unmapped(pair Pair) bool {
	return pair.R1.Flags&sam.Unmapped != 0 || pair.R2.Flags&sam.Unmapped != 0
}

func processPair(pair Pair, idx *intron.Index, opts *Opts, invalid InvalidSet, acc *accumulator, counts *Counts) error {
	chrom := refName(pair.R1)
	strand := opts.Protocol.Strand(pair.R1.Flags)
	union := interval.Union(interval.AppendAlignedBlocks(interval.AlignedBlocks(pair.R1), pair.R2))
	if len(union) == 0 {
		invalid.Add(pair.R1.Name)
		counts.UnmappedPairs++
		return nil
	}

	var nascent *interval.GenomicRange
	r, ok, err := detectNascent(idx, chrom, strand, union)
	if err != nil {
		return errors.E(err, "read", pair.R1.Name)
	}
	if ok {
		nascent = &r
	}
	acc.addPair(chrom, strand, union, nascent)
	if strand == interval.Forward {
		counts.ForwardPairs++
		if nascent != nil {
			counts.ForwardNascent++
		}
	} else {
		counts.ReversePairs++
		if nascent != nil {
			counts.ReverseNascent++
		}
	}
	return nil
}

func writeSummary(ctx context.Context, path string, summary Summary) (err error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = out.Writer(ctx).Write(data); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}
