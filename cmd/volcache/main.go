// Command volcache inspects and exports multi-resolution volumes.
//
//	volcache -config volume.yaml info
//	volcache -config volume.yaml export -out ./copy.zarr -codec zstd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/volcache/config"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "volcache: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("volcache", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to volcache.yaml (default: small procedural volume)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: volcache [-config file] <info|export> [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "info":
		return runInfo(ctx, cfg, rest, stdout)
	case "export":
		return runExport(ctx, cfg, rest, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
