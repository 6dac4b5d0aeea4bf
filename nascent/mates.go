package nascent

import (
	"github.com/grailbio/hts/sam"
)

// Pair is a read-1 record and its read-2 mate.
type Pair struct {
	R1, R2 *sam.Record
}

// mateBuffer holds records whose mate has not been seen yet, keyed by read
// name.  A name is in at most one of the two maps.
type mateBuffer struct {
	read1 map[string]*sam.Record
	read2 map[string]*sam.Record
}

func newMateBuffer() *mateBuffer {
	return &mateBuffer{
		read1: make(map[string]*sam.Record),
		read2: make(map[string]*sam.Record),
	}
}

type mateResult int

const (
	// stashed: the record waits for its mate.
	stashed mateResult = iota
	// completed: the record's mate was buffered; the pair is returned.
	completed
	// unpaired: the record has neither the read-1 nor the read-2 flag.
	unpaired
)

// add either buffers rec or completes the pair it belongs to.  A record that
// arrives while another record of the same name and role is buffered
// replaces it.
func (b *mateBuffer) add(rec *sam.Record) (Pair, mateResult) {
	switch {
	case rec.Flags&sam.Read1 != 0:
		if mate, ok := b.read2[rec.Name]; ok {
			delete(b.read2, rec.Name)
			return Pair{R1: rec, R2: mate}, completed
		}
		b.read1[rec.Name] = rec
		return Pair{}, stashed
	case rec.Flags&sam.Read2 != 0:
		if mate, ok := b.read1[rec.Name]; ok {
			delete(b.read1, rec.Name)
			return Pair{R1: mate, R2: rec}, completed
		}
		b.read2[rec.Name] = rec
		return Pair{}, stashed
	}
	return Pair{}, unpaired
}

// pending returns the number of buffered records.
func (b *mateBuffer) pending() int { return len(b.read1) + len(b.read2) }

// clear drops all buffered records.
func (b *mateBuffer) clear() {
	b.read1 = make(map[string]*sam.Record)
	b.read2 = make(map[string]*sam.Record)
}
