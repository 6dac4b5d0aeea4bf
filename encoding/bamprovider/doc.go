// Package bamprovider gives sequential, restartable access to the records of
// a BAM or SAM file.
//
// A Provider can hand out any number of Iterators over the same file, each
// starting from the first record.  Multi-pass algorithms open one Iterator
// per pass.
package bamprovider
