package selection

import (
	"sync/atomic"
	"time"

	kit "kulisml/internal/transport"
)

// State of one user's selection dialog.
type State int

const (
	// StateChoosing is the only state in which Toggle/Commit are legal.
	StateChoosing State = iota
	// StateCommitted and StateAbandoned are terminal; the session is removed
	// from the service as soon as it enters either.
	StateCommitted
	StateAbandoned
)

type eventKind int

const (
	evStart eventKind = iota
	evToggle
	evCommit
)

type event struct {
	kind    eventKind
	topicID string
	// callback is set for toggle/commit so the press can be acknowledged.
	callback *kit.Callback
}

// session is the ephemeral per-user dialog state. state and working are owned
// by the session's mailbox goroutine after creation. msgRef is written by the
// mailbox goroutine and read by the expiry sweeper, both under the service
// mutex. touched is shared with the sweeper via the atomic.
type session struct {
	userID  int64
	state   State
	working map[string]struct{}
	msgRef  kit.MessageRef
	touched atomic.Int64 // unix nano of the last applied event

	events chan event
	quit   chan struct{}
	done   chan struct{} // closed by the mailbox goroutine on exit
}

func (s *session) touch(now time.Time) { s.touched.Store(now.UnixNano()) }

func (s *session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.touched.Load()))
}

func (s *session) has(topicID string) bool {
	_, ok := s.working[topicID]
	return ok
}

// toggle symmetric-differences topicID into/out of the working set.
func (s *session) toggle(topicID string) {
	if s.has(topicID) {
		delete(s.working, topicID)
	} else {
		s.working[topicID] = struct{}{}
	}
}

func (s *session) workingIDs() []string {
	out := make([]string, 0, len(s.working))
	for id := range s.working {
		out = append(out, id)
	}
	return out
}
