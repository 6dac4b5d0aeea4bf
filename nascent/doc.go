// Package nascent extracts strand-resolved read pairs and nascent-intron
// evidence from a coordinate-sorted paired-end BAM file.
//
// Run makes three passes over the input:
//
//   1. A pre-scan collects the names of reads with secondary alignments.
//   2. The main pass pairs mates by name, classifies each pair's
//      transcriptional strand from the read-1 flags and the library
//      protocol, writes the union of the pair's aligned blocks to
//      {forward,reverse}_pairs.bed, and looks up the polymerase position
//      (the pair's 3' end on its strand) in the intron index.  Hits are
//      written to {forward,reverse}_nascent_introns.bed.  Pairs whose mates
//      map to different chromosomes are excluded.
//   3. The partition pass copies every record whose name was not excluded
//      to forward.bam or reverse.bam, classifying each record on its own.
//
// Both BAM partitions are then sorted by coordinate and indexed.  Counts of
// selected reads are written to read_counts.json.
//
// Pairing assumes mates appear close together in the sorted input, so the
// mate buffer holds only reads whose mate has not been seen yet.  Nothing
// enforces this; a BAM with distant mates makes the buffer large.
package nascent
