// Package topics holds the closed topic enumeration. Topics are configuration,
// not user data: the set is fixed at startup and every subscription must
// reference a member of it.
package topics

import (
	"fmt"
	"strings"

	"kulisml/internal/config"
)

// Topic is one fixed subject category content can be filed under.
type Topic struct {
	ID    string
	Label string
	Emoji string
}

// Display is the label shown on buttons and section headers, with the emoji
// prefix when one is configured.
func (t Topic) Display() string {
	if t.Emoji == "" {
		return t.Label
	}
	return t.Emoji + " " + t.Label
}

// Catalog is an immutable registry of known topics in stable config order.
type Catalog struct {
	order []Topic
	byID  map[string]Topic
}

// Defaults mirrors the five shipped topic domains.
func Defaults() []config.TopicConfig {
	return []config.TopicConfig{
		{ID: "cv", Label: "Computer Vision (CV)", Emoji: "🤖"},
		{ID: "nlp", Label: "NLP", Emoji: "🗣️"},
		{ID: "llm", Label: "LLM", Emoji: "📚"},
		{ID: "rl", Label: "Reinforcement Learning (RL)", Emoji: "🎮"},
		{ID: "mlops", Label: "MLOps", Emoji: "⚙️"},
	}
}

// NewCatalog builds a catalog from config. An empty list falls back to
// Defaults(). Duplicate or blank ids are a startup error.
func NewCatalog(cfgs []config.TopicConfig) (*Catalog, error) {
	if len(cfgs) == 0 {
		cfgs = Defaults()
	}
	c := &Catalog{byID: make(map[string]Topic, len(cfgs))}
	for i, tc := range cfgs {
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			return nil, fmt.Errorf("topics[%d]: id is required", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("topics[%d]: duplicate id %q", i, id)
		}
		label := strings.TrimSpace(tc.Label)
		if label == "" {
			return nil, fmt.Errorf("topics[%d] (%s): label is required", i, id)
		}
		t := Topic{ID: id, Label: label, Emoji: strings.TrimSpace(tc.Emoji)}
		c.byID[id] = t
		c.order = append(c.order, t)
	}
	return c, nil
}

// List returns all topics in stable config order.
func (c *Catalog) List() []Topic {
	out := make([]Topic, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) Get(id string) (Topic, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Len() int { return len(c.order) }
