package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestStartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	c := NewCronScheduler("not a cron spec", time.UTC)
	if err := c.Start(func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestStartTwiceRegistersOnce(t *testing.T) {
	t.Parallel()

	c := NewCronScheduler("0 21 * * *", time.UTC)
	if err := c.Start(func() {}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := c.Start(func() {}); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if entries := c.cron.Entries(); len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStartWithNilJobIsNoop(t *testing.T) {
	t.Parallel()

	c := NewCronScheduler("0 21 * * *", nil)
	if err := c.Start(nil); err != nil {
		t.Fatalf("Start(nil): %v", err)
	}
	if entries := c.cron.Entries(); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
