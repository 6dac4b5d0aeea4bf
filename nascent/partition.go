package nascent

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/nascent/encoding/bamprovider"
	"github.com/grailbio/nascent/interval"
)

// bamOutput is a BAM file being written.
type bamOutput struct {
	path string
	out  file.File
	w    *bam.Writer
}

func createBAM(ctx context.Context, path string, header *sam.Header, parallelism int) (*bamOutput, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	w, err := bam.NewWriter(out.Writer(ctx), header, parallelism)
	if err != nil {
		out.Close(ctx) // nolint: errcheck
		return nil, errors.E(err, "write bam header", path)
	}
	return &bamOutput{path: path, out: out, w: w}, nil
}

func (b *bamOutput) close(ctx context.Context) error {
	err := b.w.Close()
	if e := b.out.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return errors.E(err, "close", b.path)
	}
	return nil
}

// partition copies every record of provider whose name is not in invalid to
// forward.bam or reverse.bam, by the strand of the record's own flags.
func partition(ctx context.Context, provider bamprovider.Provider, invalid InvalidSet, opts *Opts, counts *Counts) (err error) {
	header, err := provider.GetHeader()
	if err != nil {
		return errors.E(err, "read header")
	}
	var outputs []*bamOutput
	defer func() {
		for _, o := range outputs {
			if e := o.close(ctx); e != nil && err == nil {
				err = e
			}
		}
	}()
	for _, name := range []string{ForwardBAMName, ReverseBAMName} {
		o, err := createBAM(ctx, opts.outputPath(name), header, opts.Parallelism)
		if err != nil {
			return err
		}
		outputs = append(outputs, o)
	}
	forward, reverse := outputs[0], outputs[1]

	iter := provider.NewIterator()
	n := 0
	for iter.Scan() {
		if n%logInterval == 0 {
			log.Printf("writing reads: %d reads", n)
		}
		n++
		rec := iter.Record()
		if invalid.Contains(rec.Name) {
			continue
		}
		dst := reverse
		if opts.Protocol.Strand(rec.Flags) == interval.Forward {
			dst = forward
			counts.ForwardRecords++
		} else {
			counts.ReverseRecords++
		}
		if err = dst.w.Write(rec); err != nil {
			err = errors.E(err, "write", dst.path, rec.Name)
			break
		}
	}
	if e := iter.Close(); e != nil && err == nil {
		err = errors.E(e, "partition pass")
	}
	return err
}
