package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/volcache"
	"github.com/hupe1980/volcache/blobstore"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/codec"
	"github.com/hupe1980/volcache/config"
	"github.com/hupe1980/volcache/metrics/prometheus"
	"github.com/hupe1980/volcache/producer/remote"
	"github.com/hupe1980/volcache/pyramid"
)

type exportFlags struct {
	out         string
	codec       string
	levels      string
	concurrency int
	metricsAddr string
}

func runExport(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	var f exportFlags
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringVar(&f.out, "out", "", "output directory (required)")
	fs.StringVar(&f.codec, "codec", "zstd", "chunk codec of the copy")
	fs.StringVar(&f.levels, "levels", "", "comma separated levels to export (default: all)")
	fs.IntVar(&f.concurrency, "concurrency", volcache.DefaultRegionConcurrency, "parallel chunk requests")
	fs.StringVar(&f.metricsAddr, "metrics", "", "serve Prometheus metrics on this address while exporting")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if f.out == "" || f.concurrency <= 0 {
		fs.Usage()
		return errUsage
	}

	c, err := codec.ByName(f.codec)
	if err != nil {
		return err
	}

	var opts []volcache.Option
	if f.metricsAddr != "" {
		reg := prom.NewRegistry()
		opts = append(opts, volcache.WithMetricsCollector(prometheus.NewCollector(reg)))
		srv := &http.Server{Addr: f.metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() { _ = srv.ListenAndServe() }()
		defer srv.Close()
	}

	src, err := cfg.Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer src.Close()

	levels, err := parseLevels(f.levels, src.Geometry().NumLevels())
	if err != nil {
		return err
	}

	w := remote.NewWriter(blobstore.NewLocalStore(f.out), c)
	for _, l := range levels {
		start := time.Now()
		n, err := exportLevel(ctx, src, w, l, c.Name(), f.concurrency)
		if err != nil {
			return fmt.Errorf("level %d: %w", l, err)
		}
		fmt.Fprintf(stdout, "level %d: %d chunks in %s\n", l, n, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// exportLevel copies every chunk of level l. The level is written as a
// single-timepoint, single-channel array holding the source's current
// timepoint and channel.
func exportLevel(ctx context.Context, src *volcache.Source, w *remote.Writer, l int, codecName string, concurrency int) (int64, error) {
	geom := src.Geometry()
	dims, _ := geom.Dimensions(l)
	cs, _ := geom.ChunkSize(l)
	grid, err := geom.GridDimensions(l)
	if err != nil {
		return 0, err
	}

	meta := remote.NewArrayMeta(dims, cs, 1, 1, codecName)
	if err := w.WriteMeta(ctx, l, meta); err != nil {
		return 0, err
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for z := range grid.Z {
		for y := range grid.Y {
			for x := range grid.X {
				coord := pyramid.ChunkCoord{X: x, Y: y, Z: z}
				g.Go(func() error {
					s, err := src.GetChunk(gctx, l, coord)
					if err != nil {
						return err
					}
					if err := w.WriteChunk(gctx, meta, chunk.NewKey(l, coord), s); err != nil {
						return err
					}
					written.Add(1)
					return nil
				})
			}
		}
	}
	err = g.Wait()
	return written.Load(), err
}

func parseLevels(s string, n int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		levels := make([]int, n)
		for i := range levels {
			levels[i] = i
		}
		return levels, nil
	}
	var levels []int
	for _, part := range strings.Split(s, ",") {
		l, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: level %q", volcache.ErrInvalidArgument, part)
		}
		if l < 0 || l >= n {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", volcache.ErrLevelOutOfRange, l, n)
		}
		levels = append(levels, l)
	}
	return levels, nil
}
