package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
)

// Scheduler wires the cron driver with the ingestion engine and pushes a
// digest notification after passes that produced new items.
type Scheduler struct {
	driver   ports.Scheduler
	ingestor *Ingestor
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the daily scrape job.
func NewScheduler(driver ports.Scheduler, ingestor *Ingestor, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, ingestor: ingestor, notifier: notifier, logger: logger}
}

// Start registers the daily pass with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.ingestor == nil {
		return nil
	}

	return s.driver.Start(func() {
		s.runPass(ctx)
	})
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) runPass(ctx context.Context) {
	results := s.ingestor.ProcessAll(ctx)

	inserted := 0
	for _, r := range results {
		inserted += r.Inserted
	}
	if s.logger != nil {
		s.logger.Info("scheduled pass finished", "sources", len(results), "inserted", inserted)
	}

	if inserted == 0 || s.notifier == nil {
		return
	}

	msg := domain.PushMessage{
		Title: "News dashboard",
		Body:  fmt.Sprintf("%d new articles are waiting", inserted),
		Tag:   "daily-digest",
		URL:   "/",
	}
	if err := s.notifier.Broadcast(ctx, msg); err != nil && s.logger != nil {
		s.logger.Error("digest notification failed", "error", err)
	}
}
