package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "kulisml/pkg/logx"
)

// Job is a named maintenance job run on a cron spec.
type Job struct {
	Name string
	// Spec is a cron expression or an "@every <duration>" descriptor.
	Spec string
	Run  func(ctx context.Context) error
}

type jobDef struct {
	job Job
}

// Service hosts recurring maintenance jobs (session sweeps and the like) on a
// single cron runner. It is not the digest trigger; see Daily for that.
type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu       sync.Mutex
	timezone string
	defs     []jobDef
	c        *cron.Cron
	runCtx   context.Context
	cancel   context.CancelFunc
}

func NewService(timezone string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log.With(logx.String("component", "schedule")),
		timezone: strings.TrimSpace(timezone),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers a job. Registration after Start schedules it immediately.
func (s *Service) Add(j Job) error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("schedule: job name required")
	}
	if j.Run == nil {
		return fmt.Errorf("schedule: job %q has no run func", j.Name)
	}
	if _, err := s.parser.Parse(j.Spec); err != nil {
		return fmt.Errorf("schedule: job %q spec %q: %w", j.Name, j.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = append(s.defs, jobDef{job: j})
	if s.c != nil {
		s.registerLocked(&s.defs[len(s.defs)-1])
	}
	return nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)

	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for i := range s.defs {
		s.registerLocked(&s.defs[i])
	}
	s.c.Start()
	s.log.Info("maintenance jobs started",
		logx.Int("jobs", len(s.defs)),
		logx.String("tz", loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// running jobs finish in background
	}
	s.log.Info("maintenance jobs stopped")
}

// registerLocked adds def to the live cron runner. Call with s.mu held.
func (s *Service) registerLocked(def *jobDef) {
	name := def.job.Name
	run := def.job.Run
	_, err := s.c.AddFunc(def.job.Spec, func() {
		s.mu.Lock()
		ctx := s.runCtx
		s.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in maintenance job",
					logx.String("job", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		if err := run(ctx); err != nil {
			s.log.Warn("maintenance job failed", logx.String("job", name), logx.Err(err))
		}
	})
	if err != nil {
		// Spec was validated in Add; reaching here means the parser and the
		// runner disagree, which is worth a loud log but not a crash.
		s.log.Error("failed registering maintenance job", logx.String("job", name), logx.Err(err))
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := s.timezone
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
