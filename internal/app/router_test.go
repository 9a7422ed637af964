package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"kulisml/internal/config"
	"kulisml/internal/content"
	"kulisml/internal/digest"
	rtsup "kulisml/internal/runtime/supervisor"
	"kulisml/internal/selection"
	"kulisml/internal/storage"
	"kulisml/internal/topics"
	kit "kulisml/internal/transport"
	logx "kulisml/pkg/logx"
	"kulisml/pkg/tgui"
)

type recorded struct {
	target kit.ChatTarget
	text   string
}

type fakeAdapter struct {
	mu      sync.Mutex
	nextID  int
	sends   []recorded
	edits   []recorded
	answers []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sends = append(f.sends, recorded{target: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref kit.MessageRef, text string, _ *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, recorded{target: kit.ChatTarget{ChatID: ref.ChatID}, text: text})
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeAdapter) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeAdapter) lastSend(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		t.Fatal("no sends recorded")
	}
	return f.sends[len(f.sends)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type testRig struct {
	adapter *fakeAdapter
	store   storage.Store
	updates chan kit.Update
}

func newTestRig(t *testing.T, static map[string][]config.StaticItem) *testRig {
	t.Helper()
	cat, err := topics.NewCatalog(nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := storage.NewMemory()
	fa := &fakeAdapter{}
	provider := content.NewStatic(static)

	sel := selection.New(selection.Config{TTL: time.Minute, FireTimeText: "09:00"}, st, cat, fa, logx.Nop())
	eng := digest.New(digest.Config{SendGap: time.Millisecond}, st, cat, provider, fa, logx.Nop())
	router := NewRouter(fa, st, sel, eng, logx.Nop())

	sup := rtsup.New(context.Background())
	sel.RunUnder(sup)
	router.RunUnder(sup)

	updates := make(chan kit.Update, 16)
	sup.Go("router.dispatch", func(ctx context.Context) error {
		return router.DispatchLoop(ctx, updates)
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	})
	return &testRig{adapter: fa, store: st, updates: updates}
}

func msgUpdate(userID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: userID, FromID: userID, FromUsername: "tester", Text: text,
	}}
}

func cbUpdate(userID int64, data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb-1", FromID: userID, ChatID: userID, MessageID: 1, Data: data,
	}}
}

func TestStartOpensSelectionDialog(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "/start")
	waitFor(t, "selection message", func() bool { return rig.adapter.sendCount() == 1 })

	sent := rig.adapter.lastSend(t)
	if sent.target.ChatID != 7 {
		t.Fatalf("sent to chat %d, want 7", sent.target.ChatID)
	}
	if !strings.Contains(sent.text, "topics") {
		t.Fatalf("unexpected selection text: %q", sent.text)
	}
}

func TestTopicsAliasesStart(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "/topics")
	waitFor(t, "selection message", func() bool { return rig.adapter.sendCount() == 1 })
}

func TestToggleAndDoneCommit(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "/start")
	waitFor(t, "selection message", func() bool { return rig.adapter.sendCount() == 1 })

	rig.updates <- cbUpdate(7, tgui.Data(selection.CallbackScope, selection.ActionToggle, "cv"))
	waitFor(t, "toggle edit", func() bool { return rig.adapter.editCount() == 1 })

	rig.updates <- cbUpdate(7, tgui.Data(selection.CallbackScope, selection.ActionDone, ""))
	waitFor(t, "committed subscriptions", func() bool {
		got, err := rig.store.GetTopics(context.Background(), 7)
		return err == nil && len(got) == 1 && got[0] == "cv"
	})
}

func TestUnknownCommandReplies(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "/frobnicate")
	waitFor(t, "unknown command reply", func() bool { return rig.adapter.sendCount() == 1 })
	if got := rig.adapter.lastSend(t).text; !strings.Contains(got, "Unknown command") {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "hello there")
	rig.updates <- msgUpdate(7, "/help")
	waitFor(t, "help reply", func() bool { return rig.adapter.sendCount() == 1 })
	if got := rig.adapter.lastSend(t).text; !strings.Contains(got, "/news") {
		t.Fatalf("expected help text, got %q", got)
	}
}

func TestNewsWithoutSubscriptions(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- msgUpdate(7, "/news")
	waitFor(t, "no-subscriptions reply", func() bool { return rig.adapter.sendCount() == 1 })
	if got := rig.adapter.lastSend(t).text; !strings.Contains(got, "/start") {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestNewsOnDemandSendsDigest(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, map[string][]config.StaticItem{
		"cv": {{Title: "New detector", Link: "https://example.com/d"}},
	})
	if err := rig.store.ReplaceTopics(context.Background(), 7, []string{"cv"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rig.updates <- msgUpdate(7, "/news")
	waitFor(t, "digest send", func() bool { return rig.adapter.sendCount() == 1 })
	if got := rig.adapter.lastSend(t).text; !strings.Contains(got, "New detector") {
		t.Fatalf("digest missing item: %q", got)
	}
}

func TestStaleCallbackScopeAnswered(t *testing.T) {
	t.Parallel()
	rig := newTestRig(t, nil)

	rig.updates <- cbUpdate(7, "legacy:thing:x")
	waitFor(t, "callback answered", func() bool {
		rig.adapter.mu.Lock()
		defer rig.adapter.mu.Unlock()
		return len(rig.adapter.answers) == 1
	})
	if rig.adapter.sendCount() != 0 {
		t.Fatalf("stale callback should not send messages, got %d", rig.adapter.sendCount())
	}
}
