package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"kulisml/internal/digest"
	rtsup "kulisml/internal/runtime/supervisor"
	"kulisml/internal/selection"
	"kulisml/internal/storage"
	kit "kulisml/internal/transport"
	logx "kulisml/pkg/logx"
	"kulisml/pkg/tgui"
)

// Router dispatches inbound updates to the selection dialog and the digest
// engine. Commands are a fixed set, so there is no registry; a switch is
// enough.
//
// Selection events are handed to the service synchronously: its per-user
// mailboxes preserve arrival order, and routing through a worker pool here
// would lose exactly that guarantee.
type Router struct {
	adapter kit.Adapter
	store   storage.Store
	sel     *selection.Service
	eng     *digest.Engine
	log     logx.Logger

	// sup hosts on-demand digest builds; they fetch feeds and must not block
	// the dispatch loop.
	sup *rtsup.Supervisor
}

func NewRouter(adapter kit.Adapter, store storage.Store, sel *selection.Service, eng *digest.Engine, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{adapter: adapter, store: store, sel: sel, eng: eng, log: log}
}

// RunUnder attaches the router to a supervisor. Must be called before
// DispatchLoop.
func (r *Router) RunUnder(sup *rtsup.Supervisor) { r.sup = sup }

// MenuCommands is the command list shown in the Telegram "/" menu.
func (r *Router) MenuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "start", Description: "choose news topics"},
		{Command: "topics", Description: "change your topics"},
		{Command: "news", Description: "get your digest now"},
		{Command: "help", Description: "how the bot works"},
	}
}

func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("dispatcher started")
	defer r.log.Info("dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			switch up.Kind {
			case kit.UpdateMessage:
				r.routeMessage(ctx, up.Message)
			case kit.UpdateCallback:
				r.routeCallback(ctx, up.Callback)
			}
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, msg *kit.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	switch word {
	case "start", "topics":
		r.rememberUser(ctx, msg)
		r.sel.Start(msg.FromID)
	case "news":
		r.rememberUser(ctx, msg)
		r.newsOnDemand(msg.FromID)
	case "help":
		_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, helpText(),
			&kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	default:
		_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID},
			"Unknown command. Try /help", nil)
	}
}

func (r *Router) routeCallback(ctx context.Context, cb *kit.Callback) {
	if cb == nil {
		return
	}
	scope, action, payload, ok := tgui.SplitData(cb.Data)
	if !ok || scope != selection.CallbackScope {
		// Stale buttons from older message layouts: just stop the spinner.
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	switch action {
	case selection.ActionToggle:
		r.sel.Toggle(cb, payload)
	case selection.ActionDone:
		r.sel.Commit(cb)
	default:
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
	}
}

// newsOnDemand builds and sends the user's digest off the dispatch loop.
func (r *Router) newsOnDemand(userID int64) {
	r.sup.Go("digest.on_demand", func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		err := r.eng.RunForUser(runCtx, userID)
		var reply string
		switch {
		case err == nil:
			return nil
		case errors.Is(err, digest.ErrNoSubscriptions):
			reply = "You have no topics yet. Send /start to choose some!"
		case errors.Is(err, digest.ErrNoContent):
			reply = "Nothing fresh for your topics right now. Try again later."
		case runCtx.Err() != nil:
			return nil
		default:
			r.log.Warn("on-demand digest failed", logx.Int64("user_id", userID), logx.Err(err))
			reply = "Couldn't build your digest. Try again later."
		}
		_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, reply, nil)
		return nil
	})
}

// rememberUser refreshes the user row; failures are logged, never user-facing.
func (r *Router) rememberUser(ctx context.Context, msg *kit.Message) {
	u := storage.User{
		ID:        msg.FromID,
		Username:  msg.FromUsername,
		FirstName: msg.FromFirst,
		LastName:  msg.FromLast,
	}
	if err := r.store.UpsertUser(ctx, u); err != nil {
		r.log.Warn("user upsert failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
	}
}

func helpText() string {
	var b strings.Builder
	b.WriteString(tgui.B("What I do").String())
	b.WriteString("\nI send you a daily digest of AI news for the topics you pick.\n\n")
	b.WriteString(tgui.B("Commands").String())
	b.WriteString("\n/start — pick or change your topics")
	b.WriteString("\n/topics — same as /start")
	b.WriteString("\n/news — get today's digest right now")
	b.WriteString("\n/help — this message")
	return b.String()
}
