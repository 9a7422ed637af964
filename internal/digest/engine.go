// Package digest builds and delivers the per-user topic digests.
//
// The fan-out isolates failures at the lowest boundary: a provider error
// drops one topic section, a transport error drops one recipient, and
// neither aborts the remaining batch.
package digest

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"kulisml/internal/content"
	"kulisml/internal/storage"
	"kulisml/internal/topics"
	kit "kulisml/internal/transport"
	logx "kulisml/pkg/logx"
)

// ErrNoSubscriptions reports an on-demand digest for a user who never picked
// topics; the caller owns the user-facing wording.
var ErrNoSubscriptions = errors.New("no subscriptions")

// ErrNoContent reports that every subscribed topic came back empty or
// failing, so there was nothing to send.
var ErrNoContent = errors.New("no content for subscribed topics")

type Config struct {
	// ItemsPerTopic caps displayed items per topic section (default 2).
	ItemsPerTopic int
	// SendGap is the minimum delay between consecutive outbound sends.
	// It is transport courtesy, not a correctness requirement (default 1s).
	SendGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.ItemsPerTopic <= 0 {
		c.ItemsPerTopic = 2
	}
	if c.SendGap <= 0 {
		c.SendGap = time.Second
	}
	return c
}

// Report summarizes one dispatch run.
type Report struct {
	Users   int // subscribed users considered
	Sent    int // digests delivered
	Skipped int // users with no subscriptions or no content
	Failed  int // delivery failures
}

type Engine struct {
	store    storage.Store
	catalog  *topics.Catalog
	provider content.Provider
	adapter  kit.Adapter
	log      logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, store storage.Store, catalog *topics.Catalog, provider content.Provider, adapter kit.Adapter, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		store:    store,
		catalog:  catalog,
		provider: provider,
		adapter:  adapter,
		log:      log,
	}
	e.Apply(cfg)
	return e
}

// Apply swaps pacing knobs at runtime (config reload).
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Every(cfg.SendGap), 1)
	e.mu.Unlock()
}

func (e *Engine) snapshot() (Config, *rate.Limiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.limiter
}

// RunDaily sends one digest to every subscribed user.
//
// Only listing the recipients can fail the run as a whole; from there on,
// each user is handled independently and a failed delivery is logged,
// counted, and skipped past.
func (e *Engine) RunDaily(ctx context.Context) (Report, error) {
	start := time.Now()

	userIDs, err := e.store.ListSubscribedUserIDs(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(userIDs) == 0 {
		e.log.Debug("dispatch: no subscribed users")
		return Report{}, nil
	}

	rep := Report{Users: len(userIDs)}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		switch err := e.sendDigest(ctx, userID); {
		case err == nil:
			rep.Sent++
		case errors.Is(err, ErrNoSubscriptions), errors.Is(err, ErrNoContent):
			rep.Skipped++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return rep, err
		default:
			// One bad recipient never aborts the batch.
			rep.Failed++
			e.log.Warn("digest delivery failed", logx.Int64("user_id", userID), logx.Err(err))
		}
	}

	e.log.Info("dispatch finished",
		logx.Int("users", rep.Users), logx.Int("sent", rep.Sent),
		logx.Int("skipped", rep.Skipped), logx.Int("failed", rep.Failed),
		logx.Duration("took", time.Since(start)))
	return rep, nil
}

// RunForUser is the on-demand variant ("send me my digest now") scoped to a
// single user. ErrNoSubscriptions and ErrNoContent are distinguished
// outcomes for the caller to phrase.
func (e *Engine) RunForUser(ctx context.Context, userID int64) error {
	return e.sendDigest(ctx, userID)
}

func (e *Engine) sendDigest(ctx context.Context, userID int64) error {
	subscribed, err := e.store.GetTopics(ctx, userID)
	if err != nil {
		return err
	}
	if len(subscribed) == 0 {
		return ErrNoSubscriptions
	}

	cfg, limiter := e.snapshot()

	text, ok := e.build(ctx, userID, subscribed, cfg.ItemsPerTopic)
	if !ok {
		return ErrNoContent
	}

	// Courtesy gap between consecutive sends, shared across the whole run.
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = e.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// build assembles the digest text. Reported ok=false when no topic produced
// a section (all empty or all failing), which means nothing is sent.
func (e *Engine) build(ctx context.Context, userID int64, subscribed []string, itemCap int) (string, bool) {
	member := make(map[string]struct{}, len(subscribed))
	for _, id := range subscribed {
		member[id] = struct{}{}
	}

	var sections []section
	// Catalog order keeps section order stable run over run.
	for _, t := range e.catalog.List() {
		if _, ok := member[t.ID]; !ok {
			continue
		}
		items, err := e.provider.Fetch(ctx, t.ID)
		if err != nil {
			// Fetch failures are per-topic: drop the section, keep the user.
			e.log.Warn("content fetch failed",
				logx.Int64("user_id", userID), logx.String("topic", t.ID), logx.Err(err))
			continue
		}
		if len(items) == 0 {
			continue
		}
		if len(items) > itemCap {
			items = items[:itemCap]
		}
		sections = append(sections, section{topic: t, items: items})
	}

	if len(sections) == 0 {
		return "", false
	}
	return render(sections), true
}
