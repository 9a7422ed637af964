package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultFetchTimeout = 8 * time.Second

// feedBodyLimit caps how much of a feed response we are willing to read.
const feedBodyLimit = 1 << 20

// HTTP fetches items from per-topic feed endpoints returning a JSON array of
// {"title": ..., "link": ...} objects.
type HTTP struct {
	feeds  map[string]string
	client *http.Client
}

func NewHTTP(feeds map[string]string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTP{
		feeds:  feeds,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Fetch(ctx context.Context, topicID string) ([]Item, error) {
	url, ok := h.feeds[topicID]
	if !ok {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", topicID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", topicID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s: unexpected status %d", topicID, resp.StatusCode)
	}

	var items []Item
	if err := json.NewDecoder(io.LimitReader(resp.Body, feedBodyLimit)).Decode(&items); err != nil {
		return nil, fmt.Errorf("feed %s: decode: %w", topicID, err)
	}

	out := items[:0]
	for _, it := range items {
		if it.Title == "" || it.Link == "" {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
