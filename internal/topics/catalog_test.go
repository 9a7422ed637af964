package topics

import (
	"testing"

	"kulisml/internal/config"
)

func TestNewCatalogDefaults(t *testing.T) {
	t.Parallel()
	c, err := NewCatalog(nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if c.Len() != 5 {
		t.Fatalf("Len = %d, want 5", c.Len())
	}
	for _, id := range []string{"cv", "nlp", "llm", "rl", "mlops"} {
		if !c.Contains(id) {
			t.Fatalf("missing default topic %q", id)
		}
	}
	if c.Contains("crypto") {
		t.Fatal("unexpected topic")
	}
	got := c.List()
	if got[0].ID != "cv" || got[4].ID != "mlops" {
		t.Fatalf("order = %v", got)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfgs []config.TopicConfig
	}{
		{name: "blank id", cfgs: []config.TopicConfig{{ID: " ", Label: "x"}}},
		{name: "blank label", cfgs: []config.TopicConfig{{ID: "x", Label: ""}}},
		{name: "duplicate id", cfgs: []config.TopicConfig{{ID: "x", Label: "a"}, {ID: "x", Label: "b"}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.cfgs); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()
	if got := (Topic{Label: "NLP", Emoji: "🗣️"}).Display(); got != "🗣️ NLP" {
		t.Fatalf("Display = %q", got)
	}
	if got := (Topic{Label: "NLP"}).Display(); got != "NLP" {
		t.Fatalf("Display = %q", got)
	}
}
