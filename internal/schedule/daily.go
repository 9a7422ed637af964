// Package schedule owns time-based triggering: the daily digest fire loop and
// a small cron service for auxiliary maintenance jobs.
package schedule

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	logx "kulisml/pkg/logx"
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseFireTime parses the "HH:MM" daily fire time.
func ParseFireTime(raw string) (hour, minute int, err error) {
	m := reHHMM.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid fire time %q (want HH:MM)", raw)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid fire time %q: hour out of range", raw)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid fire time %q: minute out of range", raw)
	}
	return hour, minute, nil
}

// NextFire returns the next occurrence of hour:minute in loc strictly after
// now. Calendar arithmetic goes through the time package, so month and year
// boundaries roll over correctly.
func NextFire(now time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// Daily is the perpetual digest trigger loop.
//
// Every cycle recomputes "now" from scratch, so clock drift or a suspended
// process just means the next strictly-future fire is targeted; there is no
// catch-up for fires missed while down.
type Daily struct {
	Hour   int
	Minute int
	Loc    *time.Location
	Log    logx.Logger

	// Run is invoked synchronously once per fire. Errors are logged and
	// absorbed; the loop always re-arms.
	Run func(ctx context.Context) error
}

func (d *Daily) Loop(ctx context.Context) error {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	for {
		target := NextFire(time.Now(), d.Hour, d.Minute, d.Loc)
		log.Info("next dispatch armed", logx.Time("at", target))

		timer := time.NewTimer(time.Until(target))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := d.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A failing dispatch never kills the loop.
			log.Error("dispatch run failed", logx.Err(err))
		}
	}
}
