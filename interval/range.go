package interval

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// PosType is the type used to represent interval coordinates.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Strand is the transcriptional strand of a range.
type Strand uint8

const (
	// Unknown is a sentinel for a missing or unparsable strand column.
	Unknown Strand = iota
	// Forward is the '+' strand.
	Forward
	// Reverse is the '-' strand.
	Reverse
)

// ParseStrand parses "+" or "-". Any other value yields Unknown and an
// errors.Invalid error.
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return Forward, nil
	case "-":
		return Reverse, nil
	}
	return Unknown, errors.E(errors.Invalid, fmt.Sprintf("strand must be '+' or '-', got %q", s))
}

// String returns "+", "-" or ".".
func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "."
}

// Resolved reports whether s is Forward or Reverse.
func (s Strand) Resolved() bool { return s == Forward || s == Reverse }

// GenomicRange is a stranded half-open interval [Start, End) on a
// chromosome.  Name is optional; for introns it carries the gene or
// annotation id from the source BED file.
type GenomicRange struct {
	Chrom  string
	Start  PosType
	End    PosType
	Strand Strand
	Name   string
}

// NewGenomicRange creates a range and checks End > Start >= 0.
func NewGenomicRange(chrom string, start, end PosType, strand Strand) (GenomicRange, error) {
	if start < 0 || end <= start {
		return GenomicRange{}, errors.E(errors.Invalid,
			fmt.Sprintf("invalid range %s:[%d,%d)", chrom, start, end))
	}
	return GenomicRange{Chrom: chrom, Start: start, End: end, Strand: strand}, nil
}

// Len returns End - Start.
func (r GenomicRange) Len() int { return int(r.End - r.Start) }

// Contains reports whether pos lies in [Start, End).
func (r GenomicRange) Contains(pos PosType) bool { return pos >= r.Start && pos < r.End }

func (r GenomicRange) String() string {
	return fmt.Sprintf("%s:[%d,%d)%s", r.Chrom, r.Start, r.End, r.Strand)
}

// ChromStrand identifies one strand of a chromosome.
type ChromStrand struct {
	Chrom  string
	Strand Strand
}
