package interval

import (
	"sort"

	"github.com/grailbio/hts/sam"
)

// Block is one gap-free aligned segment of a read, [Start, End) in reference
// coordinates.
type Block struct {
	Start PosType
	End   PosType
}

// AlignedBlocks returns the reference blocks covered by the aligned bases of
// rec, in ascending order.  Match, sequence-match and mismatch operations
// extend the current block; deletions and skipped regions (introns) advance
// the reference position and close it.  Insertions, clips and padding don't
// consume the reference.  Unmapped records have no blocks.
func AlignedBlocks(rec *sam.Record) []Block {
	return AppendAlignedBlocks(nil, rec)
}

// AppendAlignedBlocks is AlignedBlocks, but appends to dst.
func AppendAlignedBlocks(dst []Block, rec *sam.Record) []Block {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
		return dst
	}
	pos := PosType(rec.Pos)
	for _, op := range rec.Cigar {
		n := PosType(op.Len())
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if n == 0 {
				continue
			}
			// Adjacent M/=/X operations form one block.
			if last := len(dst) - 1; last >= 0 && dst[last].End == pos {
				dst[last].End = pos + n
			} else {
				dst = append(dst, Block{pos, pos + n})
			}
			pos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
	}
	return dst
}

// Union computes the minimal set of non-overlapping blocks covering all of
// the input blocks, sorted by ascending start.  Blocks that overlap or touch
// are merged, so [100,150) and [150,200) yield [100,200).  Empty blocks are
// dropped.  The input slice is reordered in place and reused for the result.
func Union(blocks []Block) []Block {
	if len(blocks) == 0 {
		return blocks
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Start != blocks[j].Start {
			return blocks[i].Start < blocks[j].Start
		}
		return blocks[i].End < blocks[j].End
	})
	out := blocks[:0]
	for _, b := range blocks {
		if b.End <= b.Start {
			continue
		}
		if n := len(out); n > 0 && b.Start <= out[n-1].End {
			if b.End > out[n-1].End {
				out[n-1].End = b.End
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// Span returns the smallest start and the largest end over blocks.  blocks
// must be non-empty.
func Span(blocks []Block) (start, end PosType) {
	start, end = blocks[0].Start, blocks[0].End
	for _, b := range blocks[1:] {
		if b.Start < start {
			start = b.Start
		}
		if b.End > end {
			end = b.End
		}
	}
	return
}
