package bamprovider

import (
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files.  Path may be any path
// understood by grailbio/base/file.  No index is needed: every pass is a
// full scan.
//
// Closed iterators are kept open and rewound to the first record when the
// next pass starts, so a three-pass run opens the file once.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	err  errors.Once

	mu     sync.Mutex
	header *sam.Header
	// idle holds readers of closed iterators, ready for reuse.
	idle    []*bamIterator
	nActive int
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	// start is the virtual offset just past the header.
	start  bgzf.Offset
	active bool
	err    error
	rec    *sam.Record
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		err = errors.E(err, "open", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		err = errors.E(err, "read bam header", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer r.Close() // nolint: errcheck
	b.header = r.Header()
	return b.header, nil
}

// Close implements the Provider interface.  It is an error to close the
// provider while iterators are open.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		b.err.Set(errors.E(errors.Precondition, fmt.Sprintf("%s: %d iterators still open", b.Path, b.nActive)))
	}
	for _, iter := range b.idle {
		iter.closeFiles()
	}
	b.idle = nil
	return b.err.Err()
}

// release returns iter to the idle list, or closes its files if it failed.
func (b *BAMProvider) release(iter *bamIterator) {
	iter.active = false
	reusable := iter.Err() == nil && iter.reader != nil
	if !reusable {
		iter.closeFiles()
	}
	b.mu.Lock()
	if reusable {
		b.idle = append(b.idle, iter)
	}
	b.nActive--
	b.mu.Unlock()
}

// acquire returns an iterator positioned at the first record, rewinding an
// idle one if there is any.  Errors are stored in the iterator.
func (b *BAMProvider) acquire() *bamIterator {
	b.mu.Lock()
	b.nActive++
	if n := len(b.idle); n > 0 {
		iter := b.idle[n-1]
		b.idle = b.idle[:n-1]
		b.mu.Unlock()
		iter.active = true
		iter.rec = nil
		if err := iter.reader.Seek(iter.start); err != nil {
			iter.err = errors.E(err, "rewind", b.Path)
		}
		return iter
	}
	b.mu.Unlock()

	iter := &bamIterator{provider: b, active: true}
	ctx := vcontext.Background()
	var err error
	if iter.in, err = file.Open(ctx, b.Path); err != nil {
		iter.err = errors.E(err, "open", b.Path)
		return iter
	}
	if iter.reader, err = bam.NewReader(iter.in.Reader(ctx), 1); err != nil {
		iter.err = errors.E(err, "read bam header", b.Path)
		return iter
	}
	iter.start = iter.reader.LastChunk().End
	return iter
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator() Iterator {
	iter := b.acquire()
	vlog.VI(1).Infof("%s: new iterator, err %v", b.Path, iter.err)
	return iter
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	if !i.active {
		return errors.E(errors.Precondition, "iterator closed twice", i.provider.Path)
	}
	err := i.Err()
	i.provider.release(i)
	return err
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if !i.active || i.err != nil {
		return false
	}
	i.rec, i.err = i.reader.Read()
	return i.err == nil
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.rec
}

// closeFiles closes the reader and the file, and reports the first error to
// the provider.
func (i *bamIterator) closeFiles() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
