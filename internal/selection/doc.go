// Package selection implements the topic multi-select dialog: an explicit
// per-user state machine (Idle → Choosing → Committed/Abandoned) with an
// in-memory working set that only hits the subscription store on commit.
//
// Events for one user are applied strictly in arrival order through a
// per-session mailbox goroutine; sessions for different users proceed in
// parallel. Uncommitted working sets are not durable: a restart or an expiry
// sweep abandons them and the user restarts the dialog.
package selection
