package bed

import (
	"context"
	"io"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/nascent/interval"
)

// Writer writes ranges as three-column BED lines ("chrom\tstart\tend"),
// optionally BGZF-compressed.  Writes are buffered until Flush or Close.
// Thread compatible.
type Writer struct {
	path  string
	out   file.File
	bgzf  *bgzf.Writer
	tsv   *tsv.Writer
	nRecs int64
}

// NewWriter creates an uncompressed Writer on top of w.  Close doesn't close
// w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{tsv: tsv.NewWriter(w)}
}

// Create creates (or truncates) the file at path.  If compress is true the
// output is BGZF, so it can later be indexed with tabix.
func Create(ctx context.Context, path string, compress bool) (*Writer, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create bed", path)
	}
	w := &Writer{path: path, out: out}
	if compress {
		w.bgzf = bgzf.NewWriter(out.Writer(ctx), runtime.NumCPU())
		w.tsv = tsv.NewWriter(w.bgzf)
	} else {
		w.tsv = tsv.NewWriter(out.Writer(ctx))
	}
	return w, nil
}

// Write appends r.  The strand and name of r are not written.
func (w *Writer) Write(r interval.GenomicRange) error {
	w.tsv.WriteString(r.Chrom)
	w.tsv.WriteUint32(uint32(r.Start))
	w.tsv.WriteUint32(uint32(r.End))
	w.nRecs++
	return w.tsv.EndLine()
}

// Flush pushes buffered lines to the underlying file.
func (w *Writer) Flush() error {
	if err := w.tsv.Flush(); err != nil {
		return errors.E(err, "flush bed", w.path)
	}
	return nil
}

// Len returns the number of ranges written so far.
func (w *Writer) Len() int64 { return w.nRecs }

// Path returns the destination path, or "" for writers made by NewWriter.
func (w *Writer) Path() string { return w.path }

// Close flushes and closes the writer.
func (w *Writer) Close(ctx context.Context) error {
	err := w.Flush()
	if w.bgzf != nil {
		if e := w.bgzf.Close(); e != nil && err == nil {
			err = errors.E(e, "close bgzf", w.path)
		}
	}
	if w.out != nil {
		if e := w.out.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "close bed", w.path)
		}
	}
	return err
}
