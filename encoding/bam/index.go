package bam

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	biogobam "github.com/grailbio/hts/bam"
)

// IndexStats summarizes a .bai index.
type IndexStats struct {
	Mapped   uint64
	Unmapped uint64
}

// Index reads the coordinate-sorted BAM file at bamPath and writes its index
// to bamPath + ".bai".
func Index(ctx context.Context, bamPath string) (stats IndexStats, err error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return stats, errors.E(err, "open", bamPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r, err := biogobam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return stats, errors.E(err, "read bam header", bamPath)
	}
	defer r.Close() // nolint: errcheck

	var idx biogobam.Index
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.E(err, "read", bamPath)
		}
		if err := idx.Add(rec, r.LastChunk()); err != nil {
			return stats, errors.E(errors.Precondition, err, "index", bamPath, rec.Name)
		}
	}
	for id := 0; id < idx.NumRefs(); id++ {
		if rs, ok := idx.ReferenceStats(id); ok {
			stats.Mapped += rs.Mapped
			stats.Unmapped += rs.Unmapped
		}
	}
	if n, ok := idx.Unmapped(); ok {
		stats.Unmapped += n
	}

	indexPath := bamPath + ".bai"
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return stats, errors.E(err, "create", indexPath)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = biogobam.WriteIndex(out.Writer(ctx), &idx); err != nil {
		return stats, errors.E(err, "write index", indexPath)
	}
	return stats, nil
}

// SortAndIndex sorts the BAM file at path in place and indexes it.  The
// sorted copy is first written next to path and then moved over it.
func SortAndIndex(ctx context.Context, path string, opts SortOptions) error {
	tmpPath := path + ".sorting.bam"
	if err := Sort(ctx, path, tmpPath, opts); err != nil {
		file.Remove(ctx, tmpPath) // nolint: errcheck
		return err
	}
	if err := move(ctx, tmpPath, path); err != nil {
		return err
	}
	stats, err := Index(ctx, path)
	if err != nil {
		return err
	}
	log.Printf("%s: sorted and indexed, %d mapped, %d unmapped records", path, stats.Mapped, stats.Unmapped)
	return nil
}

// SortAndIndexAll runs SortAndIndex on each path, concurrently.
func SortAndIndexAll(ctx context.Context, paths []string, opts SortOptions) error {
	return traverse.Each(len(paths), func(i int) error {
		return SortAndIndex(ctx, paths[i], opts)
	})
}

// move renames src to dst.  Non-local paths are copied, then src is removed.
func move(ctx context.Context, src, dst string) (err error) {
	if scheme, _, e := file.ParsePath(src); e == nil && scheme == "" {
		if err := os.Rename(src, dst); err != nil {
			return errors.E(err, "rename", src, dst)
		}
		return nil
	}
	in, err := file.Open(ctx, src)
	if err != nil {
		return errors.E(err, "open", src)
	}
	defer in.Close(ctx) // nolint: errcheck
	out, err := file.Create(ctx, dst)
	if err != nil {
		return errors.E(err, "create", dst)
	}
	if _, err = io.Copy(out.Writer(ctx), in.Reader(ctx)); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "copy", src, dst)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "close", dst)
	}
	return file.Remove(ctx, src)
}
