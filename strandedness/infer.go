package strandedness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	perrors "github.com/pkg/errors"
)

// GeneCountsFileName is the per-sample gene count table written by STAR
// with --quantMode GeneCounts.
const GeneCountsFileName = "ReadsPerGene.out.tab"

// InfoFileName is the name of the file written by WriteInfo.
const InfoFileName = "strandedness_info.json"

// Info is the outcome of Infer.  The JSON keys are those read by the
// downstream workflow.
type Info struct {
	Type     string `json:"strandendess_type"`
	NumType1 int    `json:"num_stranded_1"`
	NumType2 int    `json:"num_stranded_2"`
}

// Protocol returns the protocol named by Type.
func (info Info) Protocol() Protocol {
	p, err := ParseProtocol(info.Type)
	if err != nil {
		return Unknown
	}
	return p
}

type geneCountRow struct {
	Feature    string
	Unstranded int64
	Stranded   int64
	Reversed   int64
}

// Vote reads one gene count table and returns the protocol it supports.  A
// sample votes Type1 when fewer reads are unmapped in the "stranded" column
// than in the "reversed" column, and Type2 otherwise.
func Vote(in io.Reader) (Protocol, error) {
	r := tsv.NewReader(in)
	for line := 1; ; line++ {
		var row geneCountRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return Unknown, perrors.Wrapf(err, "gene count line %d", line)
		}
		if row.Feature != "N_unmapped" {
			continue
		}
		if row.Stranded < row.Reversed {
			return Type1, nil
		}
		return Type2, nil
	}
	return Unknown, errors.E(errors.Invalid, "gene count table has no N_unmapped row")
}

// VoteFile is Vote for a path.
func VoteFile(ctx context.Context, path string) (p Protocol, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Unknown, errors.E(err, "open gene counts", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if p, err = Vote(in.Reader(ctx)); err != nil {
		return Unknown, errors.E(err, path)
	}
	return p, nil
}

// Infer votes over every GeneCountsFileName found below dir (one per sample
// sub-directory).  The result type is "1" or "2" when all samples agree and
// "0" otherwise.  With no samples the result is "2".
func Infer(ctx context.Context, dir string) (Info, error) {
	var paths []string
	lister := file.List(ctx, dir, true)
	for lister.Scan() {
		if strings.HasSuffix(lister.Path(), "/"+GeneCountsFileName) {
			paths = append(paths, lister.Path())
		}
	}
	if err := lister.Err(); err != nil {
		return Info{}, errors.E(err, "list", dir)
	}
	sort.Strings(paths)
	return InferPaths(ctx, paths)
}

// InferPaths is Infer over an explicit list of gene count tables.
func InferPaths(ctx context.Context, paths []string) (Info, error) {
	var info Info
	for _, path := range paths {
		p, err := VoteFile(ctx, path)
		if err != nil {
			return Info{}, err
		}
		log.Debug.Printf("%s: votes strandedness type %v", path, p)
		if p == Type1 {
			info.NumType1++
		} else {
			info.NumType2++
		}
	}
	switch {
	case info.NumType1 == 0:
		info.Type = Type2.String()
	case info.NumType2 == 0:
		info.Type = Type1.String()
	default:
		info.Type = Unknown.String()
	}
	log.Printf("strandedness: type %s (%d samples type 1, %d samples type 2)", info.Type, info.NumType1, info.NumType2)
	return info, nil
}

// WriteInfo writes info as JSON to path.
func WriteInfo(ctx context.Context, path string, info Info) (err error) {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = out.Writer(ctx).Write(data); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

func (info Info) String() string {
	return fmt.Sprintf("type=%s type1=%d type2=%d", info.Type, info.NumType1, info.NumType2)
}
