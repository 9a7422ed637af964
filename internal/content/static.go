package content

import (
	"context"

	"kulisml/internal/config"
)

// Static serves fixed per-topic item lists from config. It is the shipped
// default so the bot works out of the box without any feed endpoints.
type Static struct {
	items map[string][]Item
}

func NewStatic(cfg map[string][]config.StaticItem) *Static {
	items := make(map[string][]Item, len(cfg))
	for topic, list := range cfg {
		out := make([]Item, 0, len(list))
		for _, it := range list {
			if it.Title == "" || it.Link == "" {
				continue
			}
			out = append(out, Item{Title: it.Title, Link: it.Link})
		}
		items[topic] = out
	}
	return &Static{items: items}
}

func (s *Static) Fetch(_ context.Context, topicID string) ([]Item, error) {
	list := s.items[topicID]
	out := make([]Item, len(list))
	copy(out, list)
	return out, nil
}
