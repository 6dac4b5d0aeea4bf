package intron

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/nascent/encoding/fasta"
	"github.com/grailbio/nascent/interval"
)

// Index answers "which intron covers position p on chromosome c, strand s"
// in constant time.  It is read-only after NewIndex, so Query may be called
// concurrently.
type Index struct {
	lengths map[string]interval.PosType
	keys    map[interval.ChromStrand]*keyIndex
	width   int
	n       int
}

// keyIndex is the lookup state of one (chromosome, strand).
type keyIndex struct {
	cells cells
	// introns[id-1] is the intron with the given id.
	introns []interval.GenomicRange
}

// Stats describes the shape of an Index.
type Stats struct {
	// Keys is the number of (chromosome, strand) pairs with at least one
	// intron.
	Keys int
	// Introns is the total number of introns indexed.
	Introns int
	// MaxID is the largest id assigned on any key.
	MaxID int
	// CellBytes is the width of one array cell: 1, 2 or 4.
	CellBytes int
}

// NewIndex builds an index of introns over the chromosomes listed in
// lengths.  Every intron must name a chromosome in lengths, have a resolved
// strand and lie within the chromosome.  Violations yield an errors.Invalid
// error.
//
// Arrays are only allocated for (chromosome, strand) pairs that carry
// introns; queries on the other pairs are bounds-checked and miss.
func NewIndex(introns []interval.GenomicRange, lengths []fasta.IndexEntry) (*Index, error) {
	idx := &Index{
		lengths: make(map[string]interval.PosType, len(lengths)),
		keys:    make(map[interval.ChromStrand]*keyIndex),
	}
	for name, length := range fasta.Lengths(lengths) {
		if length < 0 || length > interval.PosTypeMax {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("chromosome %s: unsupported length %d", name, length))
		}
		idx.lengths[name] = interval.PosType(length)
	}

	// Group introns by key, keeping annotation order.  Ids are the position
	// in the group plus one.
	maxID := 0
	for _, r := range introns {
		length, ok := idx.lengths[r.Chrom]
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("intron %v: chromosome %s not in the length table", r, r.Chrom))
		}
		if !r.Strand.Resolved() {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("intron %v: strand must be '+' or '-'", r))
		}
		if r.Start < 0 || r.End <= r.Start || r.End > length {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("intron %v: outside chromosome %s of length %d", r, r.Chrom, length))
		}
		key := interval.ChromStrand{Chrom: r.Chrom, Strand: r.Strand}
		k := idx.keys[key]
		if k == nil {
			k = &keyIndex{}
			idx.keys[key] = k
		}
		k.introns = append(k.introns, r)
		if len(k.introns) > maxID {
			maxID = len(k.introns)
		}
	}
	if uint64(maxID) > 0xffffffff {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("too many introns on one chromosome strand: %d", maxID))
	}
	idx.width = cellWidth(maxID)
	idx.n = len(introns)

	for key, k := range idx.keys {
		k.cells = newCells(idx.width, int(idx.lengths[key.Chrom]))
		for i, r := range k.introns {
			k.cells.fill(int(r.Start), int(r.End), uint32(i+1))
		}
	}
	s := idx.Stats()
	log.Printf("intron index: %d introns on %d chromosome strands, max id %d, %d-byte cells",
		s.Introns, s.Keys, s.MaxID, s.CellBytes)
	return idx, nil
}

// Query returns the intron covering pos on the given chromosome and strand.
// The bool result is false if no intron covers pos.  An unknown chromosome or
// an unresolved strand yields errors.Invalid; pos outside [0, length) yields
// errors.Precondition.
func (idx *Index) Query(chrom string, strand interval.Strand, pos interval.PosType) (interval.GenomicRange, bool, error) {
	length, ok := idx.lengths[chrom]
	if !ok {
		return interval.GenomicRange{}, false, errors.E(errors.Invalid, fmt.Sprintf("query: chromosome %s not in the length table", chrom))
	}
	if !strand.Resolved() {
		return interval.GenomicRange{}, false, errors.E(errors.Invalid, fmt.Sprintf("query %s:%d: unresolved strand", chrom, pos))
	}
	if pos < 0 || pos >= length {
		return interval.GenomicRange{}, false, errors.E(errors.Precondition,
			fmt.Sprintf("query %s:%d%v: position outside chromosome of length %d", chrom, pos, strand, length))
	}
	k := idx.keys[interval.ChromStrand{Chrom: chrom, Strand: strand}]
	if k == nil {
		return interval.GenomicRange{}, false, nil
	}
	id := k.cells.get(int(pos))
	if id == 0 {
		return interval.GenomicRange{}, false, nil
	}
	return k.introns[id-1], true, nil
}

// Stats returns a summary of the index.
func (idx *Index) Stats() Stats {
	s := Stats{Keys: len(idx.keys), Introns: idx.n, CellBytes: idx.width}
	for _, k := range idx.keys {
		if len(k.introns) > s.MaxID {
			s.MaxID = len(k.introns)
		}
	}
	return s
}
