package schedule

import (
	"context"
	"testing"
	"time"
)

func TestParseFireTime(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		hour    int
		minute  int
		wantErr bool
	}{
		{raw: "09:00", hour: 9},
		{raw: "9:05", hour: 9, minute: 5},
		{raw: "23:59", hour: 23, minute: 59},
		{raw: " 07:30 ", hour: 7, minute: 30},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12", wantErr: true},
		{raw: "12:3", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "noon", wantErr: true},
	}
	for _, tc := range cases {
		h, m, err := ParseFireTime(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFireTime(%q): expected error, got %d:%d", tc.raw, h, m)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFireTime(%q): %v", tc.raw, err)
			continue
		}
		if h != tc.hour || m != tc.minute {
			t.Errorf("ParseFireTime(%q) = %d:%d, want %d:%d", tc.raw, h, m, tc.hour, tc.minute)
		}
	}
}

func TestNextFire(t *testing.T) {
	t.Parallel()
	utc := time.UTC

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before fire time targets today",
			now:  time.Date(2025, 3, 10, 7, 15, 0, 0, utc),
			want: time.Date(2025, 3, 10, 9, 0, 0, 0, utc),
		},
		{
			name: "after fire time targets tomorrow",
			now:  time.Date(2025, 3, 10, 12, 0, 0, 0, utc),
			want: time.Date(2025, 3, 11, 9, 0, 0, 0, utc),
		},
		{
			name: "exactly at fire time targets tomorrow",
			now:  time.Date(2025, 3, 10, 9, 0, 0, 0, utc),
			want: time.Date(2025, 3, 11, 9, 0, 0, 0, utc),
		},
		{
			name: "one second before still targets today",
			now:  time.Date(2025, 3, 10, 8, 59, 59, 0, utc),
			want: time.Date(2025, 3, 10, 9, 0, 0, 0, utc),
		},
		{
			name: "month boundary",
			now:  time.Date(2025, 1, 31, 22, 0, 0, 0, utc),
			want: time.Date(2025, 2, 1, 9, 0, 0, 0, utc),
		},
		{
			name: "year boundary",
			now:  time.Date(2025, 12, 31, 23, 30, 0, 0, utc),
			want: time.Date(2026, 1, 1, 9, 0, 0, 0, utc),
		},
		{
			name: "leap day",
			now:  time.Date(2024, 2, 29, 10, 0, 0, 0, utc),
			want: time.Date(2024, 3, 1, 9, 0, 0, 0, utc),
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NextFire(tc.now, 9, 0, utc)
			if !got.Equal(tc.want) {
				t.Fatalf("NextFire(%v) = %v, want %v", tc.now, got, tc.want)
			}
			if !got.After(tc.now) {
				t.Fatalf("NextFire(%v) = %v is not strictly in the future", tc.now, got)
			}
		})
	}
}

func TestNextFireNilLocationDefaultsToLocal(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	got := NextFire(now, 9, 0, nil)
	if got.Location() != time.Local {
		t.Fatalf("expected local location, got %v", got.Location())
	}
}

func TestDailyLoopStopsOnCancel(t *testing.T) {
	t.Parallel()
	// Aim half a day away so the timer cannot fire during the test.
	d := &Daily{
		Hour:   (time.Now().UTC().Hour() + 12) % 24,
		Minute: 0,
		Loc:    time.UTC,
		Run: func(ctx context.Context) error {
			t.Error("run should not fire")
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Loop(ctx); err != nil {
			t.Errorf("Loop returned error: %v", err)
		}
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop after cancel")
	}
}
