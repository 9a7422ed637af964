// Package content supplies per-topic items for digests.
//
// Providers are expected to return quickly or fail fast; a provider error
// for one topic only drops that topic's section from a digest.
package content

import (
	"context"
	"time"

	"kulisml/internal/config"
)

// Item is one piece of content: a headline and where to read it.
type Item struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Provider returns an ordered list of items for a topic. The list may be
// empty; order is meaningful and preserved downstream.
type Provider interface {
	Fetch(ctx context.Context, topicID string) ([]Item, error)
}

// New builds the provider stack from config: an HTTP feed when one is
// configured for the topic, otherwise the static item list. Topics with
// neither get the builtin starter items, so a bare config still produces
// digests.
func New(cfg config.ContentConfig, fetchTimeout time.Duration) Provider {
	static := NewStatic(cfg.Static)
	for topic, items := range builtinItems() {
		if _, configured := static.items[topic]; configured {
			continue
		}
		if _, fed := cfg.Feeds[topic]; fed {
			continue
		}
		static.items[topic] = items
	}
	if len(cfg.Feeds) == 0 {
		return static
	}
	return &multi{
		http:   NewHTTP(cfg.Feeds, fetchTimeout),
		static: static,
		feeds:  cfg.Feeds,
	}
}

type multi struct {
	http   Provider
	static Provider
	feeds  map[string]string
}

func (m *multi) Fetch(ctx context.Context, topicID string) ([]Item, error) {
	if _, ok := m.feeds[topicID]; ok {
		return m.http.Fetch(ctx, topicID)
	}
	return m.static.Fetch(ctx, topicID)
}
