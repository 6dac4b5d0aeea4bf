// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam sorts BAM files by coordinate and writes their .bai indexes.
//
// Sorting is an external merge sort: records are sorted in batches of
// bounded size, batches are spilled to snappy-compressed run files, and the
// runs are merged into a BGZF-compressed BAM.  The resulting order matches
// "samtools sort": reference id, then position, then forward before
// reverse, then input order.  Unmapped records come last.
package bam
