package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCronSchedulerRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	if _, err := NewCronScheduler("not a cron", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNextHonoursLocation(t *testing.T) {
	t.Parallel()

	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	c, err := NewCronScheduler("0 6 * * *", warsaw)
	if err != nil {
		t.Fatalf("NewCronScheduler: %v", err)
	}

	from := time.Date(2025, time.November, 8, 4, 0, 0, 0, time.UTC) // 05:00 in Warsaw
	next := c.Next(from)
	want := time.Date(2025, time.November, 8, 6, 0, 0, 0, warsaw)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestStartFiresAndStopWaits(t *testing.T) {
	t.Parallel()

	c, err := NewCronScheduler("* * * * * * *", nil)
	if err != nil {
		t.Fatalf("NewCronScheduler: %v", err)
	}

	var runs atomic.Int32
	fired := make(chan struct{}, 1)
	if err := c.Start(context.Background(), func(time.Time) {
		runs.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job fired after Stop")
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
