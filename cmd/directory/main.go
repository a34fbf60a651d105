package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cipherlink/internal/app"
	"cipherlink/internal/directory"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listen   string
		redisURL string
		prefix   string
		logCfg   app.LogConfig
	)
	cmd := &cobra.Command{
		Use:          "directory",
		Short:        "Serve public key bundles for cipherlink clients",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.NewLogger(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			backend, closeBackend, err := openBackend(cmd.Context(), redisURL, prefix)
			if err != nil {
				logger.Error("open backend", zap.Error(err))
				return err
			}
			defer closeBackend()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, listen, directory.NewServer(backend, logger), logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", ":8080", "listen address")
	f.StringVar(&redisURL, "redis", "", "redis URL (e.g. redis://localhost:6379/0); empty keeps bundles in memory")
	f.StringVar(&prefix, "prefix", "cipherlink:", "redis key prefix")
	f.StringVar(&logCfg.Level, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&logCfg.Format, "log-format", "console", "console or json")
	f.StringVar(&logCfg.File, "log-file", "", "rotate logs into this file instead of stderr")
	f.IntVar(&logCfg.MaxSizeMB, "log-max-size", 10, "log file size in MB before rotation")
	f.IntVar(&logCfg.MaxBackups, "log-max-backups", 3, "rotated log files to keep")
	return cmd
}

func openBackend(ctx context.Context, redisURL, prefix string) (directory.Backend, func(), error) {
	if redisURL == "" {
		return directory.NewMemoryBackend(), func() {}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return directory.NewRedisBackend(rdb, prefix), func() { _ = rdb.Close() }, nil
}

func serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("directory listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
