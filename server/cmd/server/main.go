package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/atomweather/atomweather/pkg/lamport"
	"github.com/atomweather/atomweather/server/internal/admin"
	"github.com/atomweather/atomweather/server/internal/alerts"
	"github.com/atomweather/atomweather/server/internal/config"
	"github.com/atomweather/atomweather/server/internal/metrics"
	"github.com/atomweather/atomweather/server/internal/server"
	"github.com/atomweather/atomweather/server/internal/store"
	"github.com/atomweather/atomweather/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Positional port argument: server [port].
	if args := flag.Args(); len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			slog.Error("invalid port argument", "arg", args[0])
			os.Exit(1)
		}
		cfg.Server.Port = port
	}

	slog.Info("atomweather-server starting",
		"port", cfg.Server.Port,
		"admin_port", cfg.Server.AdminPort,
		"data_file", cfg.Server.DataFile,
		"max_stations", cfg.Server.Store.MaxStations,
		"ttl", cfg.Server.Store.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Observation store, repopulated from the last snapshot.
	st := store.New(cfg.Server.Store.MaxStations, cfg.Server.Store.TTL)
	if err := st.Load(cfg.Server.DataFile); err != nil {
		slog.Error("failed to load snapshot", "path", cfg.Server.DataFile, "err", err)
		os.Exit(1)
	}
	slog.Info("snapshot loaded", "stations", st.Count())

	m := metrics.New()
	m.SetStoreSize(st.Count())

	// Alerts engine — evaluates rules on every accepted observation.
	alertEngine := alerts.New(cfg.Server.Alerts)

	srv := server.New(cfg.Server, st, lamport.New(), m, alertEngine)

	// Optional admin HTTP surface: /metrics, /ws/stream, /api/v1/*.
	if cfg.Server.AdminPort > 0 {
		stream := ws.New(st, cfg.Server.Store.SweepInterval)

		adminSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.AdminPort),
			Handler: admin.New(st, m, alertEngine, stream),
		}
		go func() {
			slog.Info("admin listener starting", "port", cfg.Server.AdminPort)
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin listener stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			stream.Close()
			adminSrv.Shutdown(context.Background()) //nolint:errcheck
		}()
	}

	if err := srv.Run(ctx); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}
