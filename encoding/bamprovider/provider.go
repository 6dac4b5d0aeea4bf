package bamprovider

import (
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// Provider reads a BAM-like file.  Thread safe.
type Provider interface {
	// GetHeader returns the header of the file.  The callee must not modify
	// the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator positioned before the first record of
	// the file.  Errors, including failure to open the file, are reported by
	// the iterator's Err and Close.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called once. It returns any error encountered by the
	// provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in file order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. At the end of the
	// file, Scan() returns false.  If an error occurs, Scan() returns false
	// and the error can be retrieved by calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.  The record is owned
	// by the caller.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// FileType represents the type of a BAM-like file.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// BAM file
	BAM
	// SAM text file
	SAM
)

// ParseFileType parses the file type string. "bam" returns bamprovider.BAM, for
// example. On error, it returns Unknown.
func ParseFileType(name string) FileType {
	switch name {
	case "bam":
		return BAM
	case "sam":
		return SAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type from the extension of path, ignoring
// case.  Returns Unknown if the extension is not recognized.
func GuessFileType(path string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	t := ParseFileType(ext)
	if t == Unknown {
		vlog.VI(1).Infof("%v: could not detect file type.", path)
	}
	return t
}

// NewProvider creates a Provider for the file at path, by its extension.  For
// an unrecognized extension the returned provider fails every call with an
// errors.NotSupported error.
func NewProvider(path string) Provider {
	switch GuessFileType(path) {
	case BAM:
		return &BAMProvider{Path: path}
	case SAM:
		return &SAMProvider{Path: path}
	}
	return &errorProvider{err: errors.E(errors.NotSupported, "unrecognized alignment file type (want .bam or .sam)", path)}
}
