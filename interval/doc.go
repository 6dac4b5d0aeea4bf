/*Package interval holds the genomic coordinate types shared by the nascent
  intron pipeline: stranded half-open ranges, aligned blocks of a read, and
  the union of the blocks of a read pair.

  All coordinates are 0-based.  A range [Start, End) covers Start but not
  End, as in BED files.  Positions fit in a PosType, which is int32 since
  that's what BAM files are limited to.
*/
package interval
