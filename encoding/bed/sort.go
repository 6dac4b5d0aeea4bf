package bed

import (
	"context"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/nascent/interval"
	perrors "github.com/pkg/errors"
)

type bed3Row struct {
	Chrom string
	Start int64
	End   int64
}

// ReadRanges reads the first three columns of a BED stream.  Extra columns
// are ignored.  The strand of the returned ranges is Unknown.
func ReadRanges(in io.Reader) ([]interval.GenomicRange, error) {
	r := tsv.NewReader(skipHeaderLines(in))
	r.Comment = '#'
	var ranges []interval.GenomicRange
	for line := 1; ; line++ {
		var row bed3Row
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, perrors.Wrapf(err, "bed record %d", line)
		}
		ranges = append(ranges, interval.GenomicRange{
			Chrom: row.Chrom,
			Start: interval.PosType(row.Start),
			End:   interval.PosType(row.End),
		})
	}
	return ranges, nil
}

// Sort orders ranges by chromosome, then start, then end.  Chromosomes are
// ordered by refOrder; chromosomes missing from refOrder sort after the known
// ones, by name.
func Sort(ranges []interval.GenomicRange, refOrder map[string]int) {
	rank := func(chrom string) int {
		if i, ok := refOrder[chrom]; ok {
			return i
		}
		return len(refOrder)
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		a, b := &ranges[i], &ranges[j]
		if a.Chrom != b.Chrom {
			ra, rb := rank(a.Chrom), rank(b.Chrom)
			if ra != rb {
				return ra < rb
			}
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
}

// ReadRangesFile is ReadRanges for a path.  Gzip-compressed files are
// decompressed transparently.
func ReadRangesFile(ctx context.Context, path string) (ranges []interval.GenomicRange, err error) {
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
	if ranges, err = ReadRanges(reader); err != nil {
		return nil, errors.E(err, path)
	}
	return ranges, nil
}

// SortFile sorts the BED file at path in place.  The whole file is held in
// memory.  compress selects BGZF output and must match how the file was
// written.
func SortFile(ctx context.Context, path string, refOrder map[string]int, compress bool) error {
	ranges, err := ReadRangesFile(ctx, path)
	if err != nil {
		return err
	}
	Sort(ranges, refOrder)

	w, err := Create(ctx, path, compress)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		if err = w.Write(r); err != nil {
			w.Close(ctx) // nolint: errcheck
			return errors.E(err, path)
		}
	}
	if err = w.Close(ctx); err != nil {
		return err
	}
	log.Debug.Printf("%s: sorted %d intervals", path, len(ranges))
	return nil
}
