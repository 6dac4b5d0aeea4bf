// Package strandedness maps mate flags to the transcriptional strand of a
// read pair under a stranded library protocol, and infers the protocol of a
// set of samples from aligner gene counts.
package strandedness

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/nascent/interval"
)

// Protocol is the library strandedness convention.
type Protocol int

const (
	// Unknown is returned by Infer when samples disagree.  It is not a valid
	// configuration.
	Unknown Protocol = iota
	// Type1: read 1 is sequenced from the transcript strand.
	Type1
	// Type2: read 2 is sequenced from the transcript strand (dUTP and most
	// Illumina stranded kits).
	Type2
)

// ParseProtocol parses "1" or "2".  Anything else is an errors.Invalid error.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "1":
		return Type1, nil
	case "2":
		return Type2, nil
	}
	return Unknown, errors.E(errors.Invalid, fmt.Sprintf("strandedness type must be '1' or '2', got %q", s))
}

// String returns "1", "2", or "0" for Unknown.
func (p Protocol) String() string {
	switch p {
	case Type1:
		return "1"
	case Type2:
		return "2"
	}
	return "0"
}

// Strand returns the transcriptional strand of the pair that a record with
// the given flags belongs to.  For a pair, pass the flags of the read-1 mate.
// Unknown yields interval.Unknown.
//
//   Type1: forward iff (read1 && !reverse) || (read2 && reverse)
//   Type2: forward iff (read2 && !reverse) || (read1 && reverse)
func (p Protocol) Strand(flags sam.Flags) interval.Strand {
	read1 := flags&sam.Read1 != 0
	read2 := flags&sam.Read2 != 0
	reverse := flags&sam.Reverse != 0
	var forward bool
	switch p {
	case Type1:
		forward = (read1 && !reverse) || (read2 && reverse)
	case Type2:
		forward = (read2 && !reverse) || (read1 && reverse)
	default:
		return interval.Unknown
	}
	if forward {
		return interval.Forward
	}
	return interval.Reverse
}
