package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDaily_RejectsBadTime(t *testing.T) {
	s := New(zerolog.Nop())
	for _, at := range []string{"", "25:00", "7h", "12:61"} {
		if err := s.Daily(at, "closing", func(context.Context) error { return nil }); err == nil {
			t.Errorf("expected error for %q", at)
		}
	}
}

func TestDaily_RejectsDuplicateName(t *testing.T) {
	s := New(zerolog.Nop())
	job := func(context.Context) error { return nil }
	if err := s.Daily("19:00", "closing", job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Daily("20:00", "closing", job); err == nil {
		t.Error("expected duplicate job error")
	}
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop(), WithJobTimeout(time.Second))
	var hasDeadline bool
	if err := s.Daily("19:00", "closing", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.RunNow("closing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasDeadline {
		t.Error("expected job context to carry a deadline")
	}
	if err := s.RunNow("missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestRunNow_ReturnsJobError(t *testing.T) {
	s := New(zerolog.Nop())
	boom := errors.New("boom")
	s.Daily("19:00", "closing", func(context.Context) error { return boom })

	if err := s.RunNow("closing"); !errors.Is(err, boom) {
		t.Errorf("expected job error, got %v", err)
	}
}

func TestStop_CancelsJobContext(t *testing.T) {
	s := New(zerolog.Nop())
	s.Daily("19:00", "closing", func(ctx context.Context) error { return ctx.Err() })
	s.Start()
	s.Stop()

	if err := s.RunNow("closing"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled context after stop, got %v", err)
	}
}

func TestNextRun_AfterStart(t *testing.T) {
	loc := time.UTC
	s := New(zerolog.Nop(), WithLocation(loc))
	s.Daily("19:00", "closing", func(context.Context) error { return nil })
	s.Start()
	defer s.Stop()

	next := s.NextRun("closing")
	if next.IsZero() {
		t.Fatal("expected next run to be set")
	}
	if h, m := next.In(loc).Hour(), next.In(loc).Minute(); h != 19 || m != 0 {
		t.Errorf("expected 19:00, got %02d:%02d", h, m)
	}
}
