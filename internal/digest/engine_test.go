package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kulisml/internal/content"
	"kulisml/internal/storage"
	"kulisml/internal/topics"
	kit "kulisml/internal/transport"
	logx "kulisml/pkg/logx"
)

type fakeProvider struct {
	items map[string][]content.Item
	fails map[string]error
}

func (f *fakeProvider) Fetch(_ context.Context, topicID string) ([]content.Item, error) {
	if err := f.fails[topicID]; err != nil {
		return nil, err
	}
	return f.items[topicID], nil
}

type fakeAdapter struct {
	mu       sync.Mutex
	sends    []sentText
	failFor  map[int64]error
	sendTime []time.Time
}

type sentText struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.sends = append(f.sends, sentText{to: to, text: text, opt: opt})
	f.sendTime = append(f.sendTime, time.Now())
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sends)}, nil
}

func (f *fakeAdapter) sentTo() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.sends))
	for _, s := range f.sends {
		out = append(out, s.to.ChatID)
	}
	return out
}

func newTestEngine(t *testing.T, cfg Config, provider content.Provider, fa *fakeAdapter) (*Engine, storage.Store) {
	t.Helper()
	cat, err := topics.NewCatalog(nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := storage.NewMemory()
	return New(cfg, st, cat, provider, fa, logx.Nop()), st
}

func items(titles ...string) []content.Item {
	out := make([]content.Item, 0, len(titles))
	for _, title := range titles {
		out = append(out, content.Item{Title: title, Link: "https://example.com/" + title})
	}
	return out
}

func TestRunDailyNoSubscribers(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	eng, _ := newTestEngine(t, Config{SendGap: time.Millisecond}, &fakeProvider{}, fa)

	rep, err := eng.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if rep != (Report{}) {
		t.Fatalf("report = %+v, want zero", rep)
	}
	if got := fa.sentTo(); len(got) != 0 {
		t.Fatalf("sent to %v, want nobody", got)
	}
}

func TestRunDailyOmitsEmptyTopicSection(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{items: map[string][]content.Item{
		"cv": items("cv-news"),
		// nlp returns an empty list
	}}
	eng, st := newTestEngine(t, Config{SendGap: time.Millisecond}, p, fa)
	_ = st.ReplaceTopics(context.Background(), 1, []string{"cv", "nlp"})

	rep, err := eng.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if rep.Sent != 1 {
		t.Fatalf("report = %+v", rep)
	}

	fa.mu.Lock()
	text := fa.sends[0].text
	opt := fa.sends[0].opt
	fa.mu.Unlock()
	if !strings.Contains(text, "cv-news") {
		t.Fatalf("digest missing cv section: %q", text)
	}
	if strings.Contains(text, "NLP") {
		t.Fatalf("digest must omit the empty nlp section entirely: %q", text)
	}
	if !opt.DisablePreview {
		t.Fatal("digest must suppress link previews")
	}
}

func TestRunDailyProviderFailureDropsOnlyThatTopic(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{
		items: map[string][]content.Item{"nlp": items("nlp-news")},
		fails: map[string]error{"cv": errors.New("feed down")},
	}
	eng, st := newTestEngine(t, Config{SendGap: time.Millisecond}, p, fa)
	_ = st.ReplaceTopics(context.Background(), 1, []string{"cv", "nlp"})

	rep, err := eng.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if rep.Sent != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}

	fa.mu.Lock()
	text := fa.sends[0].text
	fa.mu.Unlock()
	if !strings.Contains(text, "nlp-news") || strings.Contains(text, "Computer Vision") {
		t.Fatalf("digest = %q", text)
	}
}

func TestRunDailyAllTopicsFailSendsNothing(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{fails: map[string]error{
		"cv":  errors.New("down"),
		"nlp": errors.New("down"),
	}}
	eng, st := newTestEngine(t, Config{SendGap: time.Millisecond}, p, fa)
	_ = st.ReplaceTopics(context.Background(), 1, []string{"cv", "nlp"})

	rep, err := eng.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if rep.Sent != 0 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got := fa.sentTo(); len(got) != 0 {
		t.Fatalf("sent to %v, want nobody", got)
	}
}

func TestRunDailyDeliveryFailureIsolated(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{failFor: map[int64]error{2: errors.New("blocked by user")}}
	p := &fakeProvider{items: map[string][]content.Item{"cv": items("cv-news")}}
	eng, st := newTestEngine(t, Config{SendGap: time.Millisecond}, p, fa)
	for _, id := range []int64{1, 2, 3} {
		_ = st.ReplaceTopics(context.Background(), id, []string{"cv"})
	}

	rep, err := eng.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if rep.Sent != 2 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	got := fa.sentTo()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("sent to %v, want [1 3]", got)
	}
}

func TestRunDailyCapsItemsPerTopic(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{items: map[string][]content.Item{
		"cv": items("one", "two", "three", "four"),
	}}
	eng, st := newTestEngine(t, Config{ItemsPerTopic: 2, SendGap: time.Millisecond}, p, fa)
	_ = st.ReplaceTopics(context.Background(), 1, []string{"cv"})

	if _, err := eng.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	fa.mu.Lock()
	text := fa.sends[0].text
	fa.mu.Unlock()
	if !strings.Contains(text, "one") || !strings.Contains(text, "two") {
		t.Fatalf("capped digest lost leading items: %q", text)
	}
	if strings.Contains(text, "three") || strings.Contains(text, "four") {
		t.Fatalf("digest exceeds item cap: %q", text)
	}
	// Provider order is preserved, not re-sorted.
	if strings.Index(text, "one") > strings.Index(text, "two") {
		t.Fatalf("item order changed: %q", text)
	}
}

func TestRunForUserOutcomes(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{items: map[string][]content.Item{"cv": items("cv-news")}}
	eng, st := newTestEngine(t, Config{SendGap: time.Millisecond}, p, fa)

	if err := eng.RunForUser(context.Background(), 9); !errors.Is(err, ErrNoSubscriptions) {
		t.Fatalf("err = %v, want ErrNoSubscriptions", err)
	}

	_ = st.ReplaceTopics(context.Background(), 9, []string{"nlp"}) // no content for nlp
	if err := eng.RunForUser(context.Background(), 9); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}

	_ = st.ReplaceTopics(context.Background(), 9, []string{"cv"})
	if err := eng.RunForUser(context.Background(), 9); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}
	if got := fa.sentTo(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("sent to %v, want [9]", got)
	}
}

func TestSendGapPacesConsecutiveSends(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	p := &fakeProvider{items: map[string][]content.Item{"cv": items("cv-news")}}
	eng, st := newTestEngine(t, Config{SendGap: 50 * time.Millisecond}, p, fa)
	for _, id := range []int64{1, 2, 3} {
		_ = st.ReplaceTopics(context.Background(), id, []string{"cv"})
	}

	if _, err := eng.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	fa.mu.Lock()
	times := append([]time.Time(nil), fa.sendTime...)
	fa.mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("sent %d messages, want 3", len(times))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 40*time.Millisecond {
			t.Fatalf("send %d only %v after previous, want >= ~50ms", i, gap)
		}
	}
}
