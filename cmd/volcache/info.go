package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hupe1980/volcache/config"
	"github.com/hupe1980/volcache/producer/remote"
)

func runInfo(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	src, err := cfg.Open(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	geom := src.Geometry()
	fmt.Fprintf(stdout, "source: %s\n", cfg.Source.Kind)
	if p, ok := src.Producer().(*remote.Producer); ok {
		meta, err := p.Meta(0)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "timepoints: %d  channels: %d  codec: %s\n", meta.Timepoints(), meta.Channels(), meta.CodecID())
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tDIMENSIONS\tCHUNK\tGRID\tCHUNKS\tSCALE")
	for l := range geom.NumLevels() {
		dims, _ := geom.Dimensions(l)
		cs, _ := geom.ChunkSize(l)
		grid, _ := geom.GridDimensions(l)
		xf, _ := geom.WorldTransform(l)
		m := xf.Matrix()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%g\n", l, dims, cs, grid, grid.Elements(), m[0][0])
	}
	return tw.Flush()
}
