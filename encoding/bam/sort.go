package bam

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	biogobam "github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// DefaultSortBatchSize is the default number of records to keep in
// memory before resorting to external sorting.
const DefaultSortBatchSize = 1 << 20

// DefaultParallelism is the default value for SortOptions.Parallelism.
const DefaultParallelism = 2

// SortOptions controls Sort and Sorter.
type SortOptions struct {
	// SortBatchSize is the number of sam.Records to keep in memory before
	// spilling a sorted run to TmpDir.  If <= 0, DefaultSortBatchSize is used.
	SortBatchSize int

	// Parallelism limits the number of background batch sorts. Max memory
	// consumption of the sorter grows linearly with this value. If <= 0,
	// DefaultParallelism is used.
	Parallelism int

	// TmpDir is the local directory for run files.  "" means the system
	// default, usually /tmp.
	TmpDir string
}

type sortBatch struct {
	// index is the position of the batch in the input.  It breaks ties between
	// equal keys in different runs.
	index int
	recs  []sortEntry
}

// Sorter sorts sam.Records by coordinate and writes them as a BAM file.
//
// Sorter orders records in the following way:
//
// - Increasing reference sequence IDs, then
// - increasing alignment positions, then
// - sorts a forward read before a reverse read.
// - All else equal, sorts records the order of appearance in the input (i.e., stable sort)
//
// These criteria are the same as "samtool sort" and "sambamba sort".
//
// Example:
//   sorter := NewSorter(header, SortOptions{})
//   for _, rec := range recordlist {
//     sorter.AddRecord(rec)
//   }
//   err := sorter.Finish(ctx, "foo.bam")
type Sorter struct {
	options      SortOptions
	header       *sam.Header
	totalRecords int
	nBatches     int
	recs         []sortEntry
	err          errors.Once
	bgSorterCh   chan sortBatch

	wg   sync.WaitGroup
	mu   sync.Mutex
	runs map[int]string // batch index -> temp run file.
}

// NewSorter creates a Sorter for records described by header.
func NewSorter(header *sam.Header, options SortOptions) *Sorter {
	if options.SortBatchSize <= 0 {
		options.SortBatchSize = DefaultSortBatchSize
	}
	if options.Parallelism <= 0 {
		options.Parallelism = DefaultParallelism
	}
	vlog.VI(1).Infof("New Sorter: %+v", options)
	s := &Sorter{
		options:    options,
		header:     header,
		bgSorterCh: make(chan sortBatch, options.Parallelism),
		runs:       make(map[int]string),
	}
	for i := 0; i < options.Parallelism; i++ {
		s.wg.Add(1)
		go func() {
			for batch := range s.bgSorterCh {
				sortEntries(batch.recs)
				path, err := writeRun(s.options.TmpDir, batch.recs)
				if err != nil {
					s.err.Set(err)
					continue
				}
				s.mu.Lock()
				s.runs[batch.index] = path
				s.mu.Unlock()
			}
			s.wg.Done()
		}()
	}
	return s
}

func sortEntries(recs []sortEntry) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].coord < recs[j].coord
	})
}

// AddRecord adds a record to the sorter. The record is serialized
// immediately; the caller keeps ownership of rec.
func (s *Sorter) AddRecord(rec *sam.Record) {
	s.totalRecords++
	var buf bytes.Buffer
	if err := biogobam.Marshal(rec, &buf); err != nil {
		s.err.Set(errors.E(err, "marshal", rec.Name))
		return
	}
	s.recs = append(s.recs, sortEntry{coordFromRecord(rec), buf.Bytes()})
	if len(s.recs) >= s.options.SortBatchSize {
		s.bgSorterCh <- sortBatch{index: s.nBatches, recs: s.recs}
		s.nBatches++
		s.recs = nil
	}
}

// Finish must be called after adding all the records.  It merges the sorted
// runs into a BAM file at outPath and removes the temp files. After Finish,
// the Sorter becomes invalid.
func (s *Sorter) Finish(ctx context.Context, outPath string) error {
	close(s.bgSorterCh)
	s.wg.Wait()
	defer s.removeRuns()
	if err := s.err.Err(); err != nil {
		return err
	}

	// The last, partial batch is merged straight from memory.
	var runs []runReader
	for i := 0; i < s.nBatches; i++ {
		r, err := openRun(s.runs[i])
		if err != nil {
			s.err.Set(err)
			break
		}
		runs = append(runs, r)
	}
	sortEntries(s.recs)
	runs = append(runs, &memRun{entries: s.recs})
	if s.err.Err() == nil {
		s.merge(ctx, runs, outPath)
	}
	for _, r := range runs {
		s.err.Set(r.close())
	}
	s.recs = nil
	if err := s.err.Err(); err != nil {
		return err
	}
	log.Debug.Printf("%s: sorted %d records in %d runs", outPath, s.totalRecords, len(runs))
	return nil
}

func (s *Sorter) removeRuns() {
	for _, path := range s.runs {
		if err := os.Remove(path); err != nil {
			vlog.Errorf("sort %v: failed to remove sorter tmp file: %v", path, err)
		}
	}
	s.runs = nil
}

// merge writes the BAM header followed by the merged runs.
func (s *Sorter) merge(ctx context.Context, runs []runReader, outPath string) {
	out, err := file.Create(ctx, outPath)
	if err != nil {
		s.err.Set(errors.E(err, "create", outPath))
		return
	}
	gz := bgzf.NewWriter(out.Writer(ctx), runtime.NumCPU())
	writeBytes := func(b []byte) {
		_, e := gz.Write(b)
		s.err.Set(e)
	}

	header := s.header.Clone()
	header.SortOrder = sam.Coordinate
	var buf bytes.Buffer
	if err := header.EncodeBinary(&buf); err != nil {
		s.err.Set(err)
	} else {
		writeBytes(buf.Bytes())
		// Keep the header in its own BGZF block, as samtools does.
		s.err.Set(gz.Flush())
	}
	if s.err.Err() == nil {
		mergeRuns(runs, func(e sortEntry) bool {
			writeBytes(e.body)
			return s.err.Err() == nil
		})
	}
	s.err.Set(gz.Close())
	s.err.Set(out.Close(ctx))
}

// mergeLeaf is one run taking part in a merge.
type mergeLeaf struct {
	// seq orders leaves with equal keys; lower seq sorts first.
	seq    int
	reader runReader
	done   bool // reader.scan() returned false?
}

func (l *mergeLeaf) Compare(c1 llrb.Comparable) int {
	l1 := c1.(*mergeLeaf)
	k0 := l.reader.entry().coord
	k1 := l1.reader.entry().coord
	if k0 < k1 {
		return -1
	}
	if k0 > k1 {
		return 1
	}
	return l.seq - l1.seq
}

// mergeRuns calls callback sequentially for each entry of runs in sort order.
// If callback returns false, this function exits immediately.
func mergeRuns(runs []runReader, callback func(e sortEntry) bool) {
	// Sort all the inputs using a binary tree. The hope is that the child at
	// the top of the tree will stay at the top for many records, so the tree
	// maintains the sorted order in amortized O(1) time.
	leafs := llrb.Tree{}
	for i, r := range runs {
		if r.scan() {
			leafs.Insert(&mergeLeaf{seq: i, reader: r})
		}
	}
	vlog.VI(1).Infof("Merging %d runs, %d leafs active", len(runs), leafs.Len())

	for leafs.Len() > 0 {
		nthiter := 0
		// top is the smallest child. We read from top.
		// next is the 2nd smallest child, or nil if top is the only
		// child in the tree.
		var top, next *mergeLeaf
		leafs.Do(func(item llrb.Comparable) bool {
			nthiter++
			switch nthiter {
			case 1:
				top = item.(*mergeLeaf)
				return false
			default:
				next = item.(*mergeLeaf)
				return true
			}
		})
		// Read records from top, until it becomes larger than next.
		for {
			if !callback(top.reader.entry()) {
				return
			}
			top.done = !top.reader.scan()
			if top.done || (next != nil && next.Compare(top) < 0) {
				break
			}
		}
		// Move top into the proper place in the tree.
		leafs.DeleteMin()
		if !top.done {
			leafs.Insert(top)
		}
	}
}

// Sort reads the BAM file at inPath and writes its records in coordinate
// order to outPath.  inPath and outPath must differ.
func Sort(ctx context.Context, inPath, outPath string, opts SortOptions) (err error) {
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return errors.E(err, "open", inPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r, err := biogobam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return errors.E(err, "read bam header", inPath)
	}
	sorter := NewSorter(r.Header(), opts)
	for {
		rec, e := r.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			sorter.err.Set(errors.E(e, "read", inPath))
			break
		}
		sorter.AddRecord(rec)
	}
	if e := r.Close(); e != nil {
		sorter.err.Set(e)
	}
	return sorter.Finish(ctx, outPath)
}
