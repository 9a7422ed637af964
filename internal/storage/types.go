package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// User is a chat user known to the bot. Created on first interaction;
// display fields are refreshed on later interactions, the id never changes.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Config configures the subscription store.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": process-local store (dev/tests), lost on restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
