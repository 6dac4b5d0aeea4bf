package bam

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// recCoord encodes reference id, alignment position, and the reverse flag.
// Sort order of recCoord is the same as the SAM "coordinate" sort order.
type recCoord uint64

// A key used for all unmapped reads. Corresponds to (refid,pos)=(-1,-1)
const unmappedCoord recCoord = 0x7ffffffffffffffe

func coordFromRecord(rec *sam.Record) (key recCoord) {
	// This is the same as compareCoordinatesAndStrand function in sambamba.
	if rec.Ref == nil || rec.Ref.ID() < 0 {
		key = unmappedCoord
	} else {
		key = (recCoord(rec.Ref.ID()) << 33) | recCoord(uint32(rec.Pos))<<1
	}
	if (rec.Flags & sam.Reverse) != 0 {
		key |= recCoord(1)
	}
	return
}

func parseCoord(coord recCoord) (refid, pos int, reverse bool) {
	if (coord & unmappedCoord) == unmappedCoord {
		refid = -1
		pos = -1
	} else {
		refid = int(int32(coord >> 33))
		pos = int(int32((coord & 0x1ffffffff) >> 1))
	}
	if (coord & 1) != 0 {
		reverse = true
	}
	return
}

func (r recCoord) String() string {
	refid, pos, reverse := parseCoord(r)
	return fmt.Sprintf("(%d,%d,%v)", refid, pos, reverse)
}

// sortEntry is one record with its sort key.
type sortEntry struct {
	coord recCoord
	body  []byte // Contains the full record in bam serialized form.
}

func (k sortEntry) String() string {
	return fmt.Sprintf("%v/%d", k.coord, len(k.body))
}
