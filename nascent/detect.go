package nascent

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/nascent/interval"
	"github.com/grailbio/nascent/intron"
)

// polymerasePosition returns the last base covered by the union on the
// given strand: the largest covered base for Forward, the smallest for
// Reverse.  union must be non-empty.
func polymerasePosition(strand interval.Strand, union []interval.Block) interval.PosType {
	start, end := interval.Span(union)
	if strand == interval.Forward {
		return end - 1
	}
	return start
}

// detectNascent looks up the polymerase position of a pair in idx.  If an
// intron covers it, the part of the intron already transcribed is returned:
// [intron start, position] for Forward, [position, intron end) for Reverse.
func detectNascent(idx *intron.Index, chrom string, strand interval.Strand, union []interval.Block) (interval.GenomicRange, bool, error) {
	pos := polymerasePosition(strand, union)
	in, ok, err := idx.Query(chrom, strand, pos)
	if err != nil {
		return interval.GenomicRange{}, false, errors.E(err, "nascent intron lookup")
	}
	if !ok {
		return interval.GenomicRange{}, false, nil
	}
	r := interval.GenomicRange{Chrom: chrom, Strand: strand, Name: in.Name}
	if strand == interval.Forward {
		r.Start, r.End = in.Start, pos+1
	} else {
		r.Start, r.End = pos, in.End
	}
	return r, true, nil
}
