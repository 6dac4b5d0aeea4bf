package bed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/nascent/interval"
	"github.com/klauspost/compress/gzip"
	perrors "github.com/pkg/errors"
)

// bed6Row is one line of a six-column BED file.  Score may be ".".
type bed6Row struct {
	Chrom  string
	Start  int64
	End    int64
	Name   string
	Score  string
	Strand string
}

// ReadIntrons parses a six-column BED stream into stranded ranges, in file
// order.  The name column is kept in GenomicRange.Name.  Comment lines and
// UCSC "track"/"browser" lines are skipped.  Every record must have a
// resolved strand and a non-empty [start, end).
func ReadIntrons(in io.Reader) ([]interval.GenomicRange, error) {
	r := tsv.NewReader(skipHeaderLines(in))
	r.Comment = '#'
	var introns []interval.GenomicRange
	for line := 1; ; line++ {
		var row bed6Row
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, perrors.Wrapf(err, "bed record %d", line)
		}
		strand, err := interval.ParseStrand(row.Strand)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("bed record %d", line))
		}
		if row.Start < 0 || row.End <= row.Start || row.End >= interval.PosTypeMax {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("bed record %d: invalid coordinate pair [%d, %d)", line, row.Start, row.End))
		}
		introns = append(introns, interval.GenomicRange{
			Chrom:  row.Chrom,
			Start:  interval.PosType(row.Start),
			End:    interval.PosType(row.End),
			Strand: strand,
			Name:   row.Name,
		})
	}
	return introns, nil
}

// ReadIntronsFile is ReadIntrons for a path.  Gzip-compressed files (including
// BGZF) are decompressed transparently.
func ReadIntronsFile(ctx context.Context, path string) (introns []interval.GenomicRange, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open bed", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader, err := maybeDecompress(in.Reader(ctx), path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	if introns, err = ReadIntrons(reader); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("%s: loaded %d intervals", path, len(introns))
	return introns, nil
}

func maybeDecompress(r io.Reader, path string) (io.Reader, error) {
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		return gzip.NewReader(r)
	}
	return r, nil
}

// headerFilter drops UCSC "track" and "browser" lines, which tsv.Reader
// can't treat as comments.
type headerFilter struct {
	r   *bufio.Reader
	buf []byte
	err error
}

func skipHeaderLines(in io.Reader) io.Reader {
	return &headerFilter{r: bufio.NewReaderSize(in, 64<<10)}
}

func (f *headerFilter) Read(p []byte) (int, error) {
	for len(f.buf) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		var line []byte
		line, f.err = f.r.ReadBytes('\n')
		if bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser")) {
			continue
		}
		f.buf = line
	}
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}
