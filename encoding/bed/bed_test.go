package bed_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/nascent/encoding/bed"
	"github.com/grailbio/nascent/interval"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const intronsData = `track name=introns
# comment
chr1	230	300	j1	0	+
chr1	100	180	j2	.	-
chr2	5	10	j3	3	+
`

func TestReadIntrons(t *testing.T) {
	introns, err := bed.ReadIntrons(strings.NewReader(intronsData))
	assert.NoError(t, err)
	expect.EQ(t, introns, []interval.GenomicRange{
		{Chrom: "chr1", Start: 230, End: 300, Strand: interval.Forward, Name: "j1"},
		{Chrom: "chr1", Start: 100, End: 180, Strand: interval.Reverse, Name: "j2"},
		{Chrom: "chr2", Start: 5, End: 10, Strand: interval.Forward, Name: "j3"},
	})
}

func TestReadIntronsErrors(t *testing.T) {
	for _, data := range []string{
		"chr1\t230\t300\tj1\t0\t.\n",
		"chr1\t300\t300\tj1\t0\t+\n",
		"chr1\t-1\t300\tj1\t0\t+\n",
	} {
		_, err := bed.ReadIntrons(strings.NewReader(data))
		expect.True(t, errors.Is(errors.Invalid, err), "data: %q, err: %v", data, err)
	}
	_, err := bed.ReadIntrons(strings.NewReader("chr1\tx\t300\tj1\t0\t+\n"))
	expect.NotNil(t, err)
}

func writeRanges(t *testing.T, path string, compress bool, ranges []interval.GenomicRange) {
	ctx := vcontext.Background()
	w, err := bed.Create(ctx, path, compress)
	assert.NoError(t, err)
	for _, r := range ranges {
		assert.NoError(t, w.Write(r))
	}
	expect.EQ(t, w.Len(), int64(len(ranges)))
	assert.NoError(t, w.Close(ctx))
}

func TestWriter(t *testing.T) {
	var sb strings.Builder
	w := bed.NewWriter(&sb)
	assert.NoError(t, w.Write(interval.GenomicRange{Chrom: "chr1", Start: 230, End: 250, Strand: interval.Forward}))
	assert.NoError(t, w.Write(interval.GenomicRange{Chrom: "chrX", Start: 0, End: 1}))
	assert.NoError(t, w.Flush())
	expect.EQ(t, sb.String(), "chr1\t230\t250\nchrX\t0\t1\n")
}

func TestWriteAndSortFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	ranges := []interval.GenomicRange{
		{Chrom: "chr2", Start: 10, End: 20},
		{Chrom: "chrUn", Start: 1, End: 2},
		{Chrom: "chr1", Start: 50, End: 60},
		{Chrom: "chr1", Start: 10, End: 30},
		{Chrom: "chr1", Start: 10, End: 20},
	}
	want := []interval.GenomicRange{
		{Chrom: "chr1", Start: 10, End: 20},
		{Chrom: "chr1", Start: 10, End: 30},
		{Chrom: "chr1", Start: 50, End: 60},
		{Chrom: "chr2", Start: 10, End: 20},
		{Chrom: "chrUn", Start: 1, End: 2},
	}
	refOrder := map[string]int{"chr1": 0, "chr2": 1}

	for _, compress := range []bool{false, true} {
		path := filepath.Join(tmpdir, "out.bed")
		if compress {
			path += ".gz"
		}
		writeRanges(t, path, compress, ranges)
		assert.NoError(t, bed.SortFile(ctx, path, refOrder, compress))

		got, err := bed.ReadRangesFile(ctx, path)
		assert.NoError(t, err)
		expect.EQ(t, got, want, "compress: %v", compress)
	}
}

func TestSort(t *testing.T) {
	ranges := []interval.GenomicRange{
		{Chrom: "b", Start: 1, End: 2},
		{Chrom: "a", Start: 1, End: 2},
		{Chrom: "chr1", Start: 5, End: 6},
	}
	bed.Sort(ranges, map[string]int{"chr1": 0})
	expect.EQ(t, ranges[0].Chrom, "chr1")
	expect.EQ(t, ranges[1].Chrom, "a")
	expect.EQ(t, ranges[2].Chrom, "b")
}
