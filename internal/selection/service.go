package selection

import (
	"context"
	"fmt"
	"sync"
	"time"

	rtsup "kulisml/internal/runtime/supervisor"
	"kulisml/internal/storage"
	"kulisml/internal/topics"
	kit "kulisml/internal/transport"
	logx "kulisml/pkg/logx"
)

const mailboxSize = 16

const expiredAnswer = "Session expired — send /start to choose again"

type Config struct {
	// TTL is how long an untouched dialog stays alive before the sweep
	// abandons it.
	TTL time.Duration
	// FireTimeText is the "HH:MM" shown in the commit confirmation.
	FireTimeText string
}

// Service owns all live selection sessions.
type Service struct {
	cfg     Config
	store   storage.Store
	catalog *topics.Catalog
	adapter kit.Adapter
	log     logx.Logger
	sup     *rtsup.Supervisor

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(cfg Config, store storage.Store, catalog *topics.Catalog, adapter kit.Adapter, log logx.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.FireTimeText == "" {
		cfg.FireTimeText = "09:00"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		catalog:  catalog,
		adapter:  adapter,
		log:      log,
		sessions: map[int64]*session{},
	}
}

// RunUnder attaches the service to a supervisor that owns session goroutines.
// Must be called before the first Start.
func (s *Service) RunUnder(sup *rtsup.Supervisor) { s.sup = sup }

// Start opens (or re-opens) the selection dialog for a user.
//
// If a session is already choosing, the start is delivered through its
// mailbox and resets the working set from the store: last Start wins,
// uncommitted toggles are discarded.
func (s *Service) Start(userID int64) {
	s.enqueue(userID, true, event{kind: evStart})
}

// Toggle flips one topic in the user's working set. Illegal outside an
// active session: without one, the press is answered as expired.
func (s *Service) Toggle(cb *kit.Callback, topicID string) {
	s.enqueue(cb.FromID, false, event{kind: evToggle, topicID: topicID, callback: cb})
}

// Commit persists the working set and ends the session.
func (s *Service) Commit(cb *kit.Callback) {
	s.enqueue(cb.FromID, false, event{kind: evCommit, callback: cb})
}

func (s *Service) enqueue(userID int64, create bool, ev event) {
	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil {
		if !create {
			s.mu.Unlock()
			// Late press on a dead dialog (expired, committed, or restarted
			// process): acknowledge so the button stops spinning.
			s.answerDead(ev)
			return
		}
		sess = &session{
			userID:  userID,
			state:   StateChoosing,
			working: map[string]struct{}{},
			events:  make(chan event, mailboxSize),
			quit:    make(chan struct{}),
			done:    make(chan struct{}),
		}
		sess.touch(time.Now())
		s.sessions[userID] = sess
		s.spawn(sess)
	}
	s.mu.Unlock()

	select {
	case sess.events <- ev:
		// The session can turn terminal between the map lookup and the send.
		// Once the goroutine is gone nobody drains the mailbox, so if done is
		// already closed the press must be answered here.
		select {
		case <-sess.done:
			s.answerDead(ev)
		default:
		}
	default:
		// Mailbox full means the user is hammering buttons faster than we
		// render; dropping keeps per-user ordering intact for what queued.
		s.log.Warn("selection mailbox full; event dropped", logx.Int64("user_id", userID))
		if ev.callback != nil {
			_ = s.adapter.AnswerCallback(context.Background(), ev.callback.ID, "Too fast — try again")
		}
	}
}

// answerDead acknowledges a press that can no longer reach a live session.
// Answering an already-answered callback fails on the Telegram side; that
// error is deliberately ignored.
func (s *Service) answerDead(ev event) {
	if ev.callback == nil {
		return
	}
	_ = s.adapter.AnswerCallback(context.Background(), ev.callback.ID, expiredAnswer)
}

func (s *Service) spawn(sess *session) {
	name := fmt.Sprintf("selection.user.%d", sess.userID)
	s.sup.Go(name, func(ctx context.Context) error {
		defer s.drainMailbox(sess)
		defer close(sess.done)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sess.quit:
				return nil
			case ev := <-sess.events:
				s.apply(ctx, sess, ev)
				if sess.state != StateChoosing {
					return nil
				}
			}
		}
	})
}

// drainMailbox answers presses that queued behind the terminal event and will
// never be applied.
func (s *Service) drainMailbox(sess *session) {
	for {
		select {
		case ev := <-sess.events:
			s.answerDead(ev)
		default:
			return
		}
	}
}

// remove detaches the session; the mailbox goroutine exits on its own when it
// observes the terminal state, so only the sweeper closes quit.
func (s *Service) remove(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *Service) apply(ctx context.Context, sess *session, ev event) {
	sess.touch(time.Now())

	switch ev.kind {
	case evStart:
		s.applyStart(ctx, sess)
	case evToggle:
		s.applyToggle(ctx, sess, ev)
	case evCommit:
		s.applyCommit(ctx, sess, ev)
	}
}

func (s *Service) applyStart(ctx context.Context, sess *session) {
	// Seed (or reset) the working set from persisted subscriptions.
	stored, err := s.store.GetTopics(ctx, sess.userID)
	if err != nil {
		s.log.Error("selection seed failed", logx.Int64("user_id", sess.userID), logx.Err(err))
		stored = nil
	}
	sess.working = make(map[string]struct{}, len(stored))
	for _, id := range stored {
		if s.catalog.Contains(id) {
			sess.working[id] = struct{}{}
		}
	}

	msg := s.renderSelection(sess)
	ref, err := msg.send(ctx, s.adapter, kit.ChatTarget{ChatID: sess.userID})
	if err != nil {
		s.log.Warn("selection render failed", logx.Int64("user_id", sess.userID), logx.Err(err))
		return
	}
	// Published under the service mutex so the sweeper sees a whole ref.
	s.mu.Lock()
	sess.msgRef = ref
	s.mu.Unlock()
	s.log.Debug("selection started", logx.Int64("user_id", sess.userID), logx.Int("preselected", len(sess.working)))
}

func (s *Service) applyToggle(ctx context.Context, sess *session, ev event) {
	answer := func(text string) {
		if ev.callback != nil {
			_ = s.adapter.AnswerCallback(ctx, ev.callback.ID, text)
		}
	}

	if !s.catalog.Contains(ev.topicID) {
		// Outside the closed enumeration: no-op, session unchanged.
		s.log.Debug("toggle rejected: unknown topic",
			logx.Int64("user_id", sess.userID), logx.String("topic", ev.topicID))
		answer("Unknown topic")
		return
	}

	sess.toggle(ev.topicID)

	// Idempotent in-place edit of the same selection message.
	msg := s.renderSelection(sess)
	if err := msg.edit(ctx, s.adapter, sess.msgRef); err != nil {
		s.log.Warn("selection edit failed", logx.Int64("user_id", sess.userID), logx.Err(err))
	}
	answer("")
}

func (s *Service) applyCommit(ctx context.Context, sess *session, ev event) {
	ids := sess.workingIDs()

	if err := s.store.ReplaceTopics(ctx, sess.userID, ids); err != nil {
		s.log.Error("subscription commit failed", logx.Int64("user_id", sess.userID), logx.Err(err))
		if ev.callback != nil {
			_ = s.adapter.AnswerCallback(ctx, ev.callback.ID, "Saving failed — try again")
		}
		return
	}

	msg := s.renderCommitted(sess)
	if err := msg.edit(ctx, s.adapter, sess.msgRef); err != nil {
		s.log.Warn("commit render failed", logx.Int64("user_id", sess.userID), logx.Err(err))
	}
	if ev.callback != nil {
		_ = s.adapter.AnswerCallback(ctx, ev.callback.ID, "")
	}

	sess.state = StateCommitted
	s.remove(sess.userID)
	s.log.Info("subscriptions committed",
		logx.Int64("user_id", sess.userID), logx.Int("topics", len(ids)))
}

// SweepExpired abandons sessions idle longer than the TTL. Returns how many
// were swept.
func (s *Service) SweepExpired(ctx context.Context) int {
	now := time.Now()

	// The message ref is copied while the lock is held; the mailbox goroutine
	// for a session drawn here may still be applying one last event, and its
	// msgRef write is behind the same lock.
	s.mu.Lock()
	var expired []*session
	var refs []kit.MessageRef
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.cfg.TTL {
			expired = append(expired, sess)
			refs = append(refs, sess.msgRef)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	// Abandoned is represented by removal: the quit close stops the mailbox
	// goroutine, and any later press finds no session.
	for i, sess := range expired {
		close(sess.quit)
		// Best-effort: strip the stale keyboard so dead buttons don't linger.
		if refs[i].MessageID != 0 {
			msg := textMessage("⌛ Selection expired. Send /start to choose again.")
			if err := msg.edit(ctx, s.adapter, refs[i]); err != nil {
				s.log.Debug("expired session edit failed", logx.Int64("user_id", sess.userID), logx.Err(err))
			}
		}
		s.log.Info("selection session expired", logx.Int64("user_id", sess.userID))
	}
	return len(expired)
}

// ActiveSessions reports the number of live dialogs.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
