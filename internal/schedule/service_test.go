package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "kulisml/pkg/logx"
)

func TestServiceAddValidation(t *testing.T) {
	t.Parallel()
	s := NewService("", logx.Nop())

	if err := s.Add(Job{Name: "", Spec: "@every 1m", Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.Add(Job{Name: "sweep", Spec: "@every 1m"}); err == nil {
		t.Fatal("expected error for nil run func")
	}
	if err := s.Add(Job{Name: "sweep", Spec: "not a spec", Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for bad spec")
	}
	if err := s.Add(Job{Name: "sweep", Spec: "@every 5m", Run: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	if err := s.Add(Job{Name: "nightly", Spec: "30 3 * * *", Run: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("valid cron job rejected: %v", err)
	}
}

func TestServiceRunsJob(t *testing.T) {
	t.Parallel()
	s := NewService("UTC", logx.Nop())

	var runs atomic.Int64
	err := s.Add(Job{
		Name: "tick",
		Spec: "@every 1s",
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServiceStopBeforeStart(t *testing.T) {
	t.Parallel()
	s := NewService("", logx.Nop())
	s.Stop(context.Background())
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op
	s.Stop(context.Background())
}
