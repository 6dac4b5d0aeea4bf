package fasta

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	perrors "github.com/pkg/errors"
)

// IndexEntry is one line of a FASTA index (*.fai), as written by "samtools
// faidx" (http://www.htslib.org/doc/faidx.html).  Only Name and Length are
// needed to size per-base arrays; the remaining columns are kept for
// completeness.
type IndexEntry struct {
	Name      string
	Length    int64
	Offset    int64
	LineBases int64
	LineWidth int64
}

// ReadIndex parses a five-column FASTA index.  Entries are returned in file
// order, which is the reference order of the FASTA.
func ReadIndex(in io.Reader) ([]IndexEntry, error) {
	r := tsv.NewReader(in)
	r.Comment = '#'
	var (
		entries []IndexEntry
		seen    = map[string]bool{}
	)
	for line := 1; ; line++ {
		var e IndexEntry
		if err := r.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, perrors.Wrapf(err, "fasta index line %d", line)
		}
		if e.Name == "" || e.Length < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("fasta index line %d: malformed entry %+v", line, e))
		}
		if seen[e.Name] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("fasta index line %d: duplicate sequence %s", line, e.Name))
		}
		seen[e.Name] = true
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadIndexFile reads the FASTA index at path.  The path may be anything
// understood by grailbio/base/file, e.g. a local file or an S3 URL.
func ReadIndexFile(ctx context.Context, path string) (entries []IndexEntry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open fasta index", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if entries, err = ReadIndex(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, path)
	}
	return entries, nil
}

// Lengths returns a map from sequence name to sequence length.
func Lengths(entries []IndexEntry) map[string]int64 {
	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		m[e.Name] = e.Length
	}
	return m
}

// RefOrder returns a map from sequence name to its position in the index.
// It defines the sort order of chromosomes in sorted outputs.
func RefOrder(entries []IndexEntry) map[string]int {
	m := make(map[string]int, len(entries))
	for i, e := range entries {
		m[e.Name] = i
	}
	return m
}
