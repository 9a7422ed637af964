package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kulisml/internal/config"
	"kulisml/internal/content"
	"kulisml/internal/digest"
	rtsup "kulisml/internal/runtime/supervisor"
	"kulisml/internal/schedule"
	"kulisml/internal/selection"
	"kulisml/internal/storage"
	"kulisml/internal/topics"
	kit "kulisml/internal/transport"
	"kulisml/internal/transport/telegram"
	logx "kulisml/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	catalog *topics.Catalog
	adapter kit.Adapter

	sel    *selection.Service
	eng    *digest.Engine
	jobs   *schedule.Service
	router *Router

	fireHour   int
	fireMinute int
	loc        *time.Location
	sweepEvery time.Duration

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	topicCfgs := cfg.Topics
	if len(topicCfgs) == 0 {
		topicCfgs = topics.Defaults()
	}
	catalog, err := topics.NewCatalog(topicCfgs)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}

	fetchTimeout, _ := config.ParseDurationOrDefault("content.fetch_timeout", cfg.Content.FetchTimeout, 8*time.Second)
	provider := content.New(cfg.Content, fetchTimeout)

	pollTimeout, _ := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}

	fireText := strings.TrimSpace(cfg.Digest.FireTime)
	if fireText == "" {
		fireText = "09:00"
	}
	fireHour, fireMinute, err := schedule.ParseFireTime(fireText)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Digest.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			_ = store.Close()
			logSvc.Close()
			return nil, fmt.Errorf("digest.timezone: invalid %q: %w", tz, err)
		}
	}

	sessionTTL, _ := config.ParseDurationOrDefault("session.ttl", cfg.Session.TTL, 15*time.Minute)
	sweepEvery, _ := config.ParseDurationOrDefault("session.sweep_every", cfg.Session.SweepEvery, 5*time.Minute)

	sel := selection.New(selection.Config{
		TTL:          sessionTTL,
		FireTimeText: fireText,
	}, store, catalog, adapter, log.With(logx.String("comp", "selection")))

	eng := digest.New(mapDigestConfig(cfg), store, catalog, provider, adapter,
		log.With(logx.String("comp", "digest")))

	jobs := schedule.NewService(cfg.Digest.Timezone, log)

	router := NewRouter(adapter, store, sel, eng, log.With(logx.String("comp", "router")))

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		store:      store,
		catalog:    catalog,
		adapter:    adapter,
		sel:        sel,
		eng:        eng,
		jobs:       jobs,
		router:     router,
		fireHour:   fireHour,
		fireMinute: fireMinute,
		loc:        loc,
		sweepEvery: sweepEvery,
		updates:    make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.sel.RunUnder(a.sup)
	a.router.RunUnder(a.sup)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.jobs.Add(schedule.Job{
		Name: "selection.sweep",
		Spec: fmt.Sprintf("@every %s", a.sweepEvery),
		Run: func(ctx context.Context) error {
			if n := a.sel.SweepExpired(ctx); n > 0 {
				a.log.Info("swept expired selection sessions", logx.Int("count", n))
			}
			return nil
		},
	}); err != nil {
		return err
	}
	a.jobs.Start(a.sup.Context())

	daily := &schedule.Daily{
		Hour:   a.fireHour,
		Minute: a.fireMinute,
		Loc:    a.loc,
		Log:    a.log.With(logx.String("comp", "daily")),
		Run: func(ctx context.Context) error {
			_, err := a.eng.RunDaily(ctx)
			return err
		},
	}
	a.sup.Go("digest.daily", daily.Loop)

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if up, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		menu := a.router.MenuCommands()
		a.sup.Go("telegram.menu.update", func(c context.Context) error {
			mctx, cancel := context.WithTimeout(c, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, menu); err != nil {
				a.log.Debug("menu update failed", logx.Err(err))
			}
			return nil
		})
	}

	// Config hot reload. Logging and digest pacing apply live; everything
	// that owns a connection or a running loop needs a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("topics", a.catalog.Len()),
		logx.String("fire_time", fmt.Sprintf("%02d:%02d", a.fireHour, a.fireMinute)),
		logx.String("tz", a.loc.String()))
	return nil
}

func (a *App) applyReload(old, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg))
	a.eng.Apply(mapDigestConfig(cfg))

	if old != nil {
		if old.Telegram.Token != cfg.Telegram.Token {
			a.log.Warn("telegram token changed; restart required")
		}
		if old.Storage != cfg.Storage {
			a.log.Warn("storage config changed; restart required")
		}
		if old.Digest.FireTime != cfg.Digest.FireTime || old.Digest.Timezone != cfg.Digest.Timezone {
			a.log.Warn("digest fire time changed; restart required")
		}
	}
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	a.jobs.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
	}
	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("supervisor wait", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	busy, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func mapDigestConfig(cfg *config.Config) digest.Config {
	gap, _ := config.ParseDurationOrDefault("digest.send_gap", cfg.Digest.SendGap, time.Second)
	return digest.Config{
		ItemsPerTopic: cfg.Digest.ItemsPerTopic,
		SendGap:       gap,
	}
}

// validateConfig rejects configs that would break a running component. Used
// both at startup and as the hot-reload gate, so a bad edit never replaces a
// good config.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("digest.send_gap", cfg.Digest.SendGap); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("session.ttl", cfg.Session.TTL); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("session.sweep_every", cfg.Session.SweepEvery); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("content.fetch_timeout", cfg.Content.FetchTimeout); err != nil {
		return err
	}
	if cfg.Digest.ItemsPerTopic < 0 {
		return fmt.Errorf("digest.items_per_topic must be >= 0")
	}
	if ft := strings.TrimSpace(cfg.Digest.FireTime); ft != "" {
		if _, _, err := schedule.ParseFireTime(ft); err != nil {
			return err
		}
	}
	if tz := strings.TrimSpace(cfg.Digest.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("digest.timezone: invalid %q: %w", tz, err)
		}
	}
	if len(cfg.Topics) > 0 {
		if _, err := topics.NewCatalog(cfg.Topics); err != nil {
			return err
		}
	}
	return nil
}
