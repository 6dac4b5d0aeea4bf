package nascent

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/nascent/encoding/bamprovider"
)

// InvalidSet holds the names of reads excluded from every output.
type InvalidSet map[string]struct{}

// Add adds name to the set.
func (s InvalidSet) Add(name string) { s[name] = struct{}{} }

// Contains reports whether name is in the set.
func (s InvalidSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names in the set.
func (s InvalidSet) Len() int { return len(s) }

// ScanInvalid reads the whole of provider and returns the names of reads
// that have a secondary alignment.
func ScanInvalid(provider bamprovider.Provider) (InvalidSet, error) {
	invalid := InvalidSet{}
	iter := provider.NewIterator()
	n := 0
	for iter.Scan() {
		if n%logInterval == 0 {
			log.Printf("finding invalid reads: %d reads", n)
		}
		n++
		rec := iter.Record()
		if rec.Flags&sam.Secondary != 0 {
			invalid.Add(rec.Name)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.E(err, "scan for secondary alignments")
	}
	log.Printf("found %d reads with secondary alignments in %d records", invalid.Len(), n)
	return invalid, nil
}
