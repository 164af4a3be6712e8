package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	hwmem "sprinkler/internal/hardware/memory"
	"sprinkler/internal/sprinkler"
	storefile "sprinkler/internal/store/file"
	storemem "sprinkler/internal/store/memory"
)

func newServerCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		tickMS   uint32
		volatile bool
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the controller main loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServer(ctx, logger(), *blobPath, tickMS, volatile)
		},
	}
	cmd.Flags().Uint32Var(&tickMS, "tick-ms", 1000, "milliseconds between engine ticks")
	cmd.Flags().BoolVar(&volatile, "volatile", false, "keep configuration in memory only")
	return cmd
}

func runServer(ctx context.Context, logger *slog.Logger, blobPath string, tickMS uint32, volatile bool) error {
	gw := hwmem.New(logger)

	var st sprinkler.Store
	if volatile {
		st = storemem.New()
	} else {
		st = storefile.New(blobPath)
	}

	ctrl := sprinkler.New(gw, st, nil, logger)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Error("shutdown flush failed", "error", err)
		}
	}()

	// External edits of the blob are applied between ticks. The tick loop is
	// the only goroutine touching the controller; the watcher just signals.
	reload := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(ctx)

	if !volatile {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := watcher.Add(filepath.Dir(blobPath)); err != nil {
			watcher.Close()
			return err
		}
		g.Go(func() error {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if ev.Name != blobPath || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
						continue
					}
					select {
					case reload <- struct{}{}:
					default:
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Warn("blob watcher error", "error", err)
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(tickMS) * time.Millisecond)
		defer ticker.Stop()
		logger.Info("controller running", "blob", blobPath, "tick_ms", tickMS, "volatile", volatile)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-reload:
				if ctrl.Dirty() {
					logger.Warn("blob changed on disk but local changes are unsaved; keeping local config")
					continue
				}
				if err := ctrl.Reload(); err != nil {
					logger.Warn("blob reload failed", "error", err)
				}
			case <-ticker.C:
				if err := ctrl.Tick(); err != nil {
					// Clock trouble: state is untouched, the next tick retries.
					logger.Error("tick failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
