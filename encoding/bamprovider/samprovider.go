package bamprovider

import (
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// SAMProvider implements Provider for text SAM files.  Each iterator reopens
// the file.
type SAMProvider struct {
	// Path of the *.sam file. Must be nonempty.
	Path string
	err  errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type samIterator struct {
	provider *SAMProvider
	in       file.File
	reader   *sam.Reader
	err      error
	next     *sam.Record
}

func (p *SAMProvider) open() (file.File, *sam.Reader, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, p.Path)
	if err != nil {
		return nil, nil, err
	}
	r, err := sam.NewReader(in.Reader(ctx))
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		return nil, nil, err
	}
	return in, r, nil
}

// GetHeader implements the Provider interface.
func (p *SAMProvider) GetHeader() (*sam.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.header != nil {
		return p.header, nil
	}
	in, r, err := p.open()
	if err != nil {
		p.err.Set(err)
		return nil, err
	}
	p.header = r.Header()
	if err := in.Close(vcontext.Background()); err != nil {
		p.err.Set(err)
		return nil, err
	}
	return p.header, nil
}

// NewIterator implements the Provider interface.
func (p *SAMProvider) NewIterator() Iterator {
	p.mu.Lock()
	p.nActive++
	p.mu.Unlock()
	iter := &samIterator{provider: p}
	iter.in, iter.reader, iter.err = p.open()
	vlog.VI(1).Infof("%s: new iterator, err %v", p.Path, iter.err)
	return iter
}

// Close implements the Provider interface.
func (p *SAMProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nActive > 0 {
		p.err.Set(errors.E(errors.Precondition, fmt.Sprintf("%s: %d iterators still open", p.Path, p.nActive)))
	}
	return p.err.Err()
}

// Scan implements the Iterator interface.
func (i *samIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	i.next, i.err = i.reader.Read()
	return i.err == nil
}

// Record implements the Iterator interface.
func (i *samIterator) Record() *sam.Record { return i.next }

// Err implements the Iterator interface.
func (i *samIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *samIterator) Close() error {
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	err := i.Err()
	i.provider.err.Set(err)
	i.provider.mu.Lock()
	i.provider.nActive--
	i.provider.mu.Unlock()
	return err
}
