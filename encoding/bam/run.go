package bam

import (
	"bufio"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"
)

// A run is a sequence of sortEntries in sort order, either held in memory or
// spilled to a temp file.
//
// The on-disk format is a snappy stream of
//
//   coord  uint64, little endian
//   body   BAM record, starting with its int32 block_size
type runReader interface {
	// scan advances to the next entry. It returns false at the end of the run
	// or on error.
	scan() bool
	// entry returns the current entry.  The body is valid until the next call
	// to scan.
	entry() sortEntry
	// close releases resources and returns any error seen by scan.
	close() error
}

// writeRun writes sorted entries to a new temp file in dir and returns its
// path.
func writeRun(dir string, entries []sortEntry) (path string, err error) {
	temp, err := ioutil.TempFile(dir, "bamsort")
	if err != nil {
		return "", errors.E(err, "create sort run")
	}
	path = temp.Name()
	w := snappy.NewBufferedWriter(temp)
	var buf [8]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[:], uint64(e.coord))
		if _, err = w.Write(buf[:]); err != nil {
			break
		}
		if _, err = w.Write(e.body); err != nil {
			break
		}
	}
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if e := temp.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		os.Remove(path) // nolint: errcheck
		return "", errors.E(err, "write sort run", path)
	}
	vlog.VI(1).Infof("%s: wrote %d records", path, len(entries))
	return path, nil
}

type fileRun struct {
	path string
	in   *os.File
	r    *bufio.Reader
	cur  sortEntry
	buf  []byte
	err  error
}

func openRun(path string) (*fileRun, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "open sort run", path)
	}
	return &fileRun{path: path, in: in, r: bufio.NewReaderSize(snappy.NewReader(in), 1<<20)}, nil
}

func (r *fileRun) scan() bool {
	if r.err != nil {
		return false
	}
	var hdr [12]byte
	if _, r.err = io.ReadFull(r.r, hdr[:]); r.err != nil {
		if r.err == io.ErrUnexpectedEOF {
			r.err = errors.E(errors.Integrity, "truncated sort run", r.path)
		}
		return false
	}
	r.cur.coord = recCoord(binary.LittleEndian.Uint64(hdr[:8]))
	size := int(int32(binary.LittleEndian.Uint32(hdr[8:])))
	if size < 0 {
		r.err = errors.E(errors.Integrity, "corrupt sort run", r.path)
		return false
	}
	if cap(r.buf) < size+4 {
		r.buf = make([]byte, size+4)
	}
	r.buf = r.buf[:size+4]
	copy(r.buf, hdr[8:])
	if _, r.err = io.ReadFull(r.r, r.buf[4:]); r.err != nil {
		if r.err == io.EOF || r.err == io.ErrUnexpectedEOF {
			r.err = errors.E(errors.Integrity, "truncated sort run", r.path)
		}
		return false
	}
	r.cur.body = r.buf
	return true
}

func (r *fileRun) entry() sortEntry { return r.cur }

func (r *fileRun) close() error {
	err := r.err
	if err == io.EOF {
		err = nil
	}
	if e := r.in.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

type memRun struct {
	entries []sortEntry
	cur     sortEntry
}

func (r *memRun) scan() bool {
	if len(r.entries) == 0 {
		return false
	}
	r.cur = r.entries[0]
	r.entries = r.entries[1:]
	return true
}

func (r *memRun) entry() sortEntry { return r.cur }

func (r *memRun) close() error { return nil }
