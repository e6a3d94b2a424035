package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func runWatch(cmd *cobra.Command, app *application) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, app, nil)
}

// watch rebuilds the baseline on every change of the entities file until ctx is done. listening, when set, receives
// the address of the metrics server once it accepts connections
func watch(ctx context.Context, app *application, listening func(net.Addr)) error {
	if app.config.Entities.Path == "" {
		return fmt.Errorf("an entities file must be specified")
	}
	target, err := filepath.Abs(app.config.Entities.Path)
	if err != nil {
		return err
	}
	engine, err := app.engine()
	if err != nil {
		return err
	}

	reset := func() {
		entities, err := model.LoadEntities(target)
		if err != nil {
			app.logger.Warn("cannot load entities", zap.String("path", target), zap.Error(err))
			return
		}
		result, err := engine.Reset(ctx, entities)
		if err != nil {
			app.logger.Warn("baseline rejected", zap.String("path", target), zap.Error(err))
			return
		}
		app.logger.Info("baseline rebuilt",
			zap.Stringer("session", result.State.Session()),
			zap.Int("assignments", result.State.Len()),
			zap.Int("violations", len(result.Report.Violations)),
			zap.Int("concerns", len(result.Report.Concerns)),
		)
	}
	reset()

	// Editors often replace the file instead of writing it, so the directory is watched
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("cannot watch %v: %w", target, err)
	}

	var server *http.Server
	if addr := app.config.Metrics.Addr; addr != "" {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("cannot serve metrics on %v: %w", addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		server = &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		app.logger.Info("serving metrics", zap.Stringer("addr", listener.Addr()))
		if listening != nil {
			listening(listener.Addr())
		}
	}

	app.logger.Info("watching entities", zap.String("path", target))
	for {
		select {
		case <-ctx.Done():
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == target && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				reset()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
