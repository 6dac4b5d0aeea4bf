// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bed reads six-column BED annotations and writes three-column BED
// interval files.  Coordinates are 0-based and half-open, as in the BED
// format.
package bed
