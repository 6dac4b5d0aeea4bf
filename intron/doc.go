// Package intron provides a dense per-base lookup from genomic position to
// the annotated intron covering it.
//
// For every (chromosome, strand) that carries at least one intron, the Index
// holds an array with one cell per reference base.  A cell stores 0 when no
// intron covers the base, or the id of the covering intron.  Ids are assigned
// 1..N per (chromosome, strand) in annotation order.  When introns overlap,
// the one that appears later in the annotation wins.
//
// All arrays share one cell width, the smallest of 1, 2 or 4 bytes that can
// hold the largest id.
package intron
