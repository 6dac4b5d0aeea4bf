package nascent_test

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/nascent/encoding/bamprovider"
	"github.com/grailbio/nascent/encoding/fasta"
	"github.com/grailbio/nascent/interval"
	"github.com/grailbio/nascent/intron"
	"github.com/grailbio/nascent/nascent"
	"github.com/grailbio/nascent/strandedness"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testData struct {
	header *sam.Header
	recs   []*sam.Record
	idx    *intron.Index
}

func newRecord(t *testing.T, name string, ref *sam.Reference, pos int, flags sam.Flags, cigar ...sam.CigarOp) *sam.Record {
	n := 0
	for _, op := range cigar {
		if op.Type().Consumes().Query != 0 {
			n += op.Len()
		}
	}
	seq := make([]byte, n)
	qual := make([]byte, n)
	for i := range seq {
		seq[i] = "ACGT"[i%4]
		qual[i] = 30
	}
	r, err := sam.NewRecord(name, ref, ref, pos, pos, 0, 60, cigar, seq, qual, nil)
	require.NoError(t, err)
	r.Flags = flags | sam.Paired
	return r
}

func m(n int) sam.CigarOp { return sam.NewCigarOp(sam.CigarMatch, n) }

// newTestData builds a coordinate-sorted input with:
//
//   fwd: a forward pair covering [100,150) and [200,250), ending inside the
//        forward intron [230,300).
//   rev: a reverse pair covering [350,380) and [400,450), starting inside the
//        reverse intron [300,360).
//   sec: a pair with an extra secondary alignment.
//   mix: a pair with mates on chr1 and chr2.
//   far: a forward pair outside every intron.
func newTestData(t *testing.T) testData {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)
	header.SortOrder = sam.Coordinate

	recs := []*sam.Record{
		newRecord(t, "fwd", chr1, 100, sam.Read1, m(50)),
		newRecord(t, "sec", chr1, 120, sam.Read1, m(30)),
		newRecord(t, "sec", chr1, 130, sam.Read1|sam.Secondary, m(30)),
		newRecord(t, "fwd", chr1, 200, sam.Read2|sam.Reverse, m(50)),
		newRecord(t, "sec", chr1, 210, sam.Read2|sam.Reverse, m(30)),
		newRecord(t, "rev", chr1, 350, sam.Read2, m(30)),
		newRecord(t, "rev", chr1, 400, sam.Read1|sam.Reverse, m(50)),
		newRecord(t, "mix", chr1, 500, sam.Read1, m(20)),
		newRecord(t, "far", chr1, 600, sam.Read1, m(10), sam.NewCigarOp(sam.CigarSkipped, 100), m(10)),
		newRecord(t, "far", chr1, 705, sam.Read2|sam.Reverse, m(20)),
		newRecord(t, "mix", chr2, 10, sam.Read2|sam.Reverse, m(20)),
	}
	idx, err := intron.NewIndex([]interval.GenomicRange{
		{Chrom: "chr1", Start: 230, End: 300, Strand: interval.Forward, Name: "i1"},
		{Chrom: "chr1", Start: 300, End: 360, Strand: interval.Reverse, Name: "i2"},
	}, []fasta.IndexEntry{{Name: "chr1", Length: 1000}, {Name: "chr2", Length: 1000}})
	require.NoError(t, err)
	return testData{header: header, recs: recs, idx: idx}
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func readBAMNames(t *testing.T, path string) []string {
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()
	r, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var names []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, rec.Name)
	}
	require.NoError(t, r.Close())
	return names
}

func testOpts(dir string) nascent.Opts {
	return nascent.Opts{
		BAMPath:       "unused.bam",
		OutputDir:     dir,
		Protocol:      strandedness.Type1,
		IntronsPath:   "unused.bed",
		FAIPath:       "unused.fai",
		FlushInterval: 3,
		SortBatchSize: 2,
		TmpDir:        dir,
	}
}

func TestProcess(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	data := newTestData(t)

	provider := bamprovider.NewFakeProvider(data.header, data.recs)
	counts, err := nascent.Process(ctx, provider, data.idx, testOpts(tmpdir), nil)
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	assert.Equal(t, "chr1\t100\t150\nchr1\t200\t250\nchr1\t600\t610\nchr1\t705\t725\n",
		readFile(t, filepath.Join(tmpdir, nascent.ForwardPairsName)))
	assert.Equal(t, "chr1\t350\t380\nchr1\t400\t450\n",
		readFile(t, filepath.Join(tmpdir, nascent.ReversePairsName)))
	assert.Equal(t, "chr1\t230\t250\n",
		readFile(t, filepath.Join(tmpdir, nascent.ForwardNascentIntronsName)))
	assert.Equal(t, "chr1\t350\t360\n",
		readFile(t, filepath.Join(tmpdir, nascent.ReverseNascentIntronsName)))
	assert.Equal(t, `{"selected_reads_forward":4,"selected_reads_reverse":2}`,
		readFile(t, filepath.Join(tmpdir, nascent.SummaryName)))

	assert.Equal(t, int64(11), counts.Records)
	assert.Equal(t, 1, counts.SecondaryReads)
	assert.Equal(t, int64(3), counts.SkippedInvalid)
	assert.Equal(t, int64(1), counts.ChromMismatch)
	assert.Equal(t, int64(2), counts.ForwardPairs)
	assert.Equal(t, int64(1), counts.ReversePairs)
	assert.Equal(t, int64(1), counts.ForwardNascent)
	assert.Equal(t, int64(1), counts.ReverseNascent)
	assert.Equal(t, 0, counts.UnresolvedMates)
	assert.Equal(t, 2*counts.ForwardPairs, counts.SelectedReadsForward)
	assert.Equal(t, 2*counts.ReversePairs, counts.SelectedReadsReverse)

	// Every read name is in exactly one of the partitions or excluded.
	forward := readBAMNames(t, filepath.Join(tmpdir, nascent.ForwardBAMName))
	reverse := readBAMNames(t, filepath.Join(tmpdir, nascent.ReverseBAMName))
	assert.Equal(t, []string{"fwd", "fwd", "far", "far"}, forward)
	assert.Equal(t, []string{"rev", "rev"}, reverse)
	assert.Equal(t, int64(4), counts.ForwardRecords)
	assert.Equal(t, int64(2), counts.ReverseRecords)
	seen := map[string]int{}
	for _, names := range [][]string{forward, reverse} {
		uniq := map[string]bool{}
		for _, name := range names {
			uniq[name] = true
		}
		for name := range uniq {
			seen[name]++
		}
	}
	for _, name := range []string{"fwd", "rev", "far"} {
		assert.Equal(t, 1, seen[name], name)
	}
	for _, name := range []string{"sec", "mix"} {
		assert.Equal(t, 0, seen[name], name)
	}
	for _, name := range []string{nascent.ForwardBAMName, nascent.ReverseBAMName} {
		_, err := os.Stat(filepath.Join(tmpdir, name+".bai"))
		assert.NoError(t, err)
	}
}

func TestProcessIdempotent(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	data := newTestData(t)

	var dirs []string
	for _, name := range []string{"run1", "run2"} {
		dir := filepath.Join(tmpdir, name)
		require.NoError(t, os.Mkdir(dir, 0755))
		provider := bamprovider.NewFakeProvider(data.header, data.recs)
		_, err := nascent.Process(ctx, provider, data.idx, testOpts(dir), nil)
		require.NoError(t, err)
		dirs = append(dirs, dir)
	}
	for _, name := range []string{
		nascent.ForwardPairsName, nascent.ReversePairsName,
		nascent.ForwardNascentIntronsName, nascent.ReverseNascentIntronsName,
		nascent.SummaryName, nascent.ForwardBAMName, nascent.ReverseBAMName,
	} {
		assert.Equal(t, readFile(t, filepath.Join(dirs[0], name)), readFile(t, filepath.Join(dirs[1], name)), name)
	}
}

func TestProcessSortedCompressed(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	data := newTestData(t)

	// Protocol 2 flips every pair.
	opts := testOpts(tmpdir)
	opts.Protocol = strandedness.Type2
	opts.SortIntervals = true
	opts.CompressIntervals = true
	provider := bamprovider.NewFakeProvider(data.header, data.recs)
	counts, err := nascent.Process(ctx, provider, data.idx, opts, map[string]int{"chr1": 0, "chr2": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.SelectedReadsForward)
	assert.Equal(t, int64(4), counts.SelectedReadsReverse)
	// Neither flipped pair ends inside an intron on its new strand.
	assert.Equal(t, int64(0), counts.ForwardNascent+counts.ReverseNascent)

	for _, name := range []string{nascent.ForwardPairsName, nascent.ReversePairsName} {
		path := filepath.Join(tmpdir, name+".gz")
		_, err := os.Stat(path)
		require.NoError(t, err)
	}
	reverse := readBAMNames(t, filepath.Join(tmpdir, nascent.ReverseBAMName))
	sort.Strings(reverse)
	assert.Equal(t, []string{"far", "far", "fwd", "fwd"}, reverse)
}

func writeInputBAM(t *testing.T, path string, data testData) {
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, data.header, 1)
	require.NoError(t, err)
	for _, r := range data.recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

func TestRun(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	data := newTestData(t)

	bamPath := filepath.Join(tmpdir, "Aligned.sortedByCoord.out.bam")
	writeInputBAM(t, bamPath, data)
	faiPath := filepath.Join(tmpdir, "genome.fa.fai")
	require.NoError(t, ioutil.WriteFile(faiPath, []byte("chr1\t1000\t6\t60\t61\nchr2\t1000\t1029\t60\t61\n"), 0644))
	bedPath := filepath.Join(tmpdir, "introns.bed")
	require.NoError(t, ioutil.WriteFile(bedPath, []byte(
		"track name=introns\nchr1\t230\t300\ti1\t0\t+\nchr1\t300\t360\ti2\t0\t-\n"), 0644))
	outDir := filepath.Join(tmpdir, "out")
	require.NoError(t, os.Mkdir(outDir, 0755))

	opts := nascent.Opts{
		BAMPath:       bamPath,
		OutputDir:     outDir,
		Protocol:      strandedness.Type1,
		IntronsPath:   bedPath,
		FAIPath:       faiPath,
		SortIntervals: true,
	}
	counts, err := nascent.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts.SelectedReadsForward)
	assert.Equal(t, int64(2), counts.SelectedReadsReverse)
	assert.Equal(t, `{"selected_reads_forward":4,"selected_reads_reverse":2}`,
		readFile(t, filepath.Join(outDir, nascent.SummaryName)))
	assert.Equal(t, "chr1\t230\t250\n",
		readFile(t, filepath.Join(outDir, nascent.ForwardNascentIntronsName)))
	assert.Equal(t, "chr1\t350\t360\n",
		readFile(t, filepath.Join(outDir, nascent.ReverseNascentIntronsName)))
	assert.Equal(t, []string{"fwd", "fwd", "far", "far"},
		readBAMNames(t, filepath.Join(outDir, nascent.ForwardBAMName)))
}

func TestRunErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	_, err := nascent.Run(ctx, nascent.Opts{})
	assert.Error(t, err)

	opts := nascent.Opts{
		BAMPath:     filepath.Join(tmpdir, "missing.bam"),
		OutputDir:   tmpdir,
		Protocol:    strandedness.Type2,
		IntronsPath: filepath.Join(tmpdir, "missing.bed"),
		FAIPath:     filepath.Join(tmpdir, "missing.fai"),
	}
	_, err = nascent.Run(ctx, opts)
	assert.Error(t, err)

	// An intron on a chromosome the index doesn't know.
	faiPath := filepath.Join(tmpdir, "genome.fa.fai")
	require.NoError(t, ioutil.WriteFile(faiPath, []byte("chr1\t1000\t6\t60\t61\n"), 0644))
	bedPath := filepath.Join(tmpdir, "introns.bed")
	require.NoError(t, ioutil.WriteFile(bedPath, []byte("chrX\t10\t20\ti1\t0\t+\n"), 0644))
	opts.FAIPath, opts.IntronsPath = faiPath, bedPath
	_, err = nascent.Run(ctx, opts)
	assert.Error(t, err)
}

func TestProcessUnmapped(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	data := newTestData(t)
	chr1 := data.header.Refs()[0]

	// half: read 2 is unmapped and placed at its mate.
	// lone: neither the read-1 nor the read-2 flag.
	// clip: both mates mapped, but soft-clipped entirely.
	// none: both mates unmapped, without a reference.
	n := len(data.recs)
	recs := append([]*sam.Record{}, data.recs[:n-1]...)
	recs = append(recs,
		newRecord(t, "half", chr1, 800, sam.Read1, m(20)),
		newRecord(t, "half", chr1, 800, sam.Read2|sam.Unmapped),
		newRecord(t, "lone", chr1, 850, 0, m(10)),
		newRecord(t, "clip", chr1, 900, sam.Read1, sam.NewCigarOp(sam.CigarSoftClipped, 10)),
		newRecord(t, "clip", chr1, 910, sam.Read2|sam.Reverse, sam.NewCigarOp(sam.CigarSoftClipped, 10)),
		data.recs[n-1],
		newRecord(t, "none", nil, -1, sam.Read1|sam.Unmapped),
		newRecord(t, "none", nil, -1, sam.Read2|sam.Unmapped),
	)

	provider := bamprovider.NewFakeProvider(data.header, recs)
	counts, err := nascent.Process(ctx, provider, data.idx, testOpts(tmpdir), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(18), counts.Records)
	assert.Equal(t, int64(1), counts.Unpaired)
	assert.Equal(t, int64(3), counts.UnmappedPairs)
	assert.Equal(t, int64(1), counts.ChromMismatch)
	assert.Equal(t, int64(4), counts.SelectedReadsForward)
	assert.Equal(t, int64(2), counts.SelectedReadsReverse)
	assert.Equal(t, `{"selected_reads_forward":4,"selected_reads_reverse":2}`,
		readFile(t, filepath.Join(tmpdir, nascent.SummaryName)))
	assert.Equal(t, "chr1\t100\t150\nchr1\t200\t250\nchr1\t600\t610\nchr1\t705\t725\n",
		readFile(t, filepath.Join(tmpdir, nascent.ForwardPairsName)))

	// Excluded names are in neither partition.
	assert.Equal(t, []string{"fwd", "fwd", "far", "far"},
		readBAMNames(t, filepath.Join(tmpdir, nascent.ForwardBAMName)))
	assert.Equal(t, []string{"rev", "rev"},
		readBAMNames(t, filepath.Join(tmpdir, nascent.ReverseBAMName)))
}
