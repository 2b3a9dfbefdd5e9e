package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atomweather/atomweather/publisher/internal/uploader"
)

func main() {
	interval := flag.Duration("interval", uploader.DefaultInterval, "time between uploads")
	noVerify := flag.Bool("no-verify", false, "skip the read-back verification after each upload")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: publisher [flags] <server-url> <file-path>")
		os.Exit(2)
	}
	serverURL, filePath := args[0], args[1]

	if _, err := os.Stat(filePath); err != nil {
		slog.Error("cannot access feed file", "path", filePath, "err", err)
		os.Exit(1)
	}

	slog.Info("atomweather-publisher starting",
		"server_url", serverURL,
		"feed", filePath,
		"interval", interval.String(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u := uploader.New(serverURL, filePath)
	u.Verify = !*noVerify

	if err := u.Run(ctx, *interval); err != nil {
		slog.Error("publisher stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("atomweather-publisher shutting down")
}
