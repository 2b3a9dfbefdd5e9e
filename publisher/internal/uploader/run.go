package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/atomweather/atomweather/publisher/internal/feed"
)

// Run publishes the feed every interval until ctx is cancelled. The feed file
// is also watched, so an edit triggers an immediate upload ahead of schedule.
// A failed cycle is logged and skipped; it never stops the publisher.
func (u *Uploader) Run(ctx context.Context, interval time.Duration) error {
	job := func() {
		if err := u.UploadOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("periodic upload failed", "err", err)
			return
		}
		slog.Info("periodic upload successful")
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(interval).StartImmediately().Do(job); err != nil {
		return fmt.Errorf("uploader: schedule upload job: %w", err)
	}
	s.StartAsync()
	defer s.Stop()

	trigger := make(chan struct{}, 1)
	go func() {
		err := feed.Watch(ctx, u.FilePath, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
		if err != nil {
			slog.Error("feed watcher stopped", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			job()
		}
	}
}
