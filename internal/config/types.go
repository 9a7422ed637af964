package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full on-disk configuration.
//
// The file may be JSON or YAML (by extension); both are decoded strictly, so
// unknown keys fail fast instead of being silently ignored.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Digest   DigestConfig   `json:"digest"`
	Session  SessionConfig  `json:"session"`

	// Topics is the closed topic enumeration. When omitted, the built-in
	// catalog defaults apply (see internal/topics).
	Topics []TopicConfig `json:"topics,omitempty"`

	Content ContentConfig `json:"content"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the subscription store.
//
// Driver values:
//   - "sqlite": SQLite database file (the default for real deployments)
//   - "memory": process-local store, lost on restart (dev/tests)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DigestConfig controls the daily dispatch.
type DigestConfig struct {
	// FireTime is the daily local send time as "HH:MM" (default "09:00").
	FireTime string `json:"fire_time,omitempty"`
	// Timezone is an IANA zone name for the fire time (default: local).
	Timezone string `json:"timezone,omitempty"`
	// ItemsPerTopic caps displayed items per topic section (default 2).
	ItemsPerTopic int `json:"items_per_topic,omitempty"`
	// SendGap is the minimum delay between consecutive sends (default "1s").
	SendGap string `json:"send_gap,omitempty"`
}

// SessionConfig controls selection-session expiry.
type SessionConfig struct {
	// TTL is how long an untouched selection dialog stays alive (default "15m").
	TTL string `json:"ttl,omitempty"`
	// SweepEvery is the expiry sweep interval (default "5m").
	SweepEvery string `json:"sweep_every,omitempty"`
}

type TopicConfig struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Emoji string `json:"emoji,omitempty"`
}

// ContentConfig configures content providers per topic.
//
// Feeds maps a topic id to an HTTP endpoint returning a JSON array of
// {"title": ..., "link": ...}. Static maps a topic id to a fixed item list.
// A feed takes precedence over static items for the same topic.
type ContentConfig struct {
	Feeds  map[string]string       `json:"feeds,omitempty"`
	Static map[string][]StaticItem `json:"static,omitempty"`
	// FetchTimeout bounds one feed request (Go duration string, default "8s").
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

type StaticItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Duration-valued fields above stay plain strings so strict decoding works
// the same for JSON and YAML; they are parsed at validation time.

// ParseDurationField parses the Go duration string stored in the config field
// named by path. Empty means the field is unset and yields zero without an
// error. Negative durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for an
// unset or zero field.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
