package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoModels = errors.New("no models to fetch")

type fetchOptions struct {
	all   bool
	purge bool
}

func newFetchCmd(a *app) *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch [model...]",
		Short: "Download and verify pretrained weights",
		Long: `Downloads the named weight files listed in the configured manifest into the
model store, verifying each SHA-256. Cached files with a matching checksum
are not downloaded again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFetch(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "fetch every model in the manifest")
	cmd.Flags().BoolVar(&opts.purge, "purge", false, "remove cached weights first")
	return cmd
}

func (a *app) runFetch(cmd *cobra.Command, names []string, opts fetchOptions) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	if opts.all {
		names = store.Manifest().Names()
	}
	if opts.purge {
		if err := store.Purge(); err != nil {
			return err
		}
		a.logger.Info("Purged model store", zap.String("root", store.Root()))
	}
	if len(names) == 0 {
		if opts.purge {
			return nil
		}
		return fmt.Errorf("%w: pass model names or --all", errNoModels)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paths, err := store.FetchAll(ctx, names, a.cfg.Models.Concurrency)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("fetch interrupted: %w", err)
		}
		return err
	}
	for _, name := range names {
		if p, ok := paths[name]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, p)
			delete(paths, name) // print duplicates once
		}
	}
	return nil
}
