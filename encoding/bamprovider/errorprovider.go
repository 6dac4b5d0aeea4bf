package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// errorProvider stands in for a file that can't be read at all.  Every
// method reports err.
type errorProvider struct {
	err error
}

func (p *errorProvider) GetHeader() (*sam.Header, error) { return nil, p.err }
func (p *errorProvider) NewIterator() Iterator          { return &errorIterator{err: p.err} }
func (p *errorProvider) Close() error                   { return p.err }

// errorIterator yields no record.
type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool          { return false }
func (i *errorIterator) Record() *sam.Record { panic("Record called on a failed iterator") }
func (i *errorIterator) Err() error          { return i.err }
func (i *errorIterator) Close() error        { return i.err }
