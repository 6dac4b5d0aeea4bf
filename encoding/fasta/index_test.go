package fasta_test

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/nascent/encoding/fasta"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const faiData = "chr1\t248956422\t112\t70\t71\n" +
	"chr2\t242193529\t252513167\t70\t71\n" +
	"chrM\t16569\t3099750718\t70\t71\n"

func TestReadIndex(t *testing.T) {
	entries, err := fasta.ReadIndex(strings.NewReader(faiData))
	assert.NoError(t, err)
	expect.EQ(t, entries, []fasta.IndexEntry{
		{"chr1", 248956422, 112, 70, 71},
		{"chr2", 242193529, 252513167, 70, 71},
		{"chrM", 16569, 3099750718, 70, 71},
	})
	expect.EQ(t, fasta.Lengths(entries)["chrM"], int64(16569))
	expect.EQ(t, fasta.RefOrder(entries), map[string]int{"chr1": 0, "chr2": 1, "chrM": 2})
}

func TestReadIndexErrors(t *testing.T) {
	_, err := fasta.ReadIndex(strings.NewReader("chr1\tabc\t0\t70\t71\n"))
	expect.NotNil(t, err)

	_, err = fasta.ReadIndex(strings.NewReader("chr1\t10\t0\t70\t71\nchr1\t10\t20\t70\t71\n"))
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestReadIndexEmpty(t *testing.T) {
	entries, err := fasta.ReadIndex(strings.NewReader(""))
	assert.NoError(t, err)
	expect.EQ(t, len(entries), 0)
}
