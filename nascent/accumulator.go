package nascent

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/nascent/encoding/bed"
	"github.com/grailbio/nascent/interval"
)

// outputKind indexes the four BED outputs.
type outputKind int

const (
	forwardPairs outputKind = iota
	reversePairs
	forwardNascent
	reverseNascent
	numOutputs
)

// accumulator buffers the intervals of classified pairs and appends them to
// their BED writers on flush.
type accumulator struct {
	writers [numOutputs]*bed.Writer
	pending [numOutputs][]interval.GenomicRange

	selectedForward int64
	selectedReverse int64
}

func newAccumulator(writers [numOutputs]*bed.Writer) *accumulator {
	return &accumulator{writers: writers}
}

// addPair records one classified pair: its union of blocks and, if any, its
// nascent-intron range.  Both mates are counted.
func (a *accumulator) addPair(chrom string, strand interval.Strand, union []interval.Block, nascent *interval.GenomicRange) {
	pairs, nascentKind := forwardPairs, forwardNascent
	if strand == interval.Forward {
		a.selectedForward += 2
	} else {
		pairs, nascentKind = reversePairs, reverseNascent
		a.selectedReverse += 2
	}
	for _, b := range union {
		a.pending[pairs] = append(a.pending[pairs], interval.GenomicRange{
			Chrom: chrom, Start: b.Start, End: b.End, Strand: strand,
		})
	}
	if nascent != nil {
		a.pending[nascentKind] = append(a.pending[nascentKind], *nascent)
	}
}

// flush writes all pending intervals, in the order they were added, and
// clears the pending lists.
func (a *accumulator) flush() error {
	for k := range a.pending {
		w := a.writers[k]
		for _, r := range a.pending[k] {
			if err := w.Write(r); err != nil {
				return errors.E(err, "write interval", w.Path())
			}
		}
		a.pending[k] = a.pending[k][:0]
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// nPending returns the number of buffered intervals.
func (a *accumulator) nPending() int {
	n := 0
	for _, p := range a.pending {
		n += len(p)
	}
	return n
}
