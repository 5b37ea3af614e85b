// Package session owns conversation state: the Session and Message model,
// pluggable persistence, and the context window handed to routing and
// generation.
//
// Invariants:
//   - Messages are append-only; nothing in this package edits or removes a
//     Message once Append has returned it.
//   - UpdatedAt never decreases, even across wall-clock steps.
//   - Stores hand out copies; mutating a loaded Session does not affect the
//     stored record until it is saved again.
//   - Concurrent requests for one session are last-writer-wins unless the
//     caller holds Manager.Lock for the duration of the request.
//
// Usage:
//
//	mgr := session.NewManager(session.NewMemoryStore())
//	s, _ := mgr.Create(ctx, "user-1")
//	_, _ = mgr.Append(ctx, s, session.RoleUser, "How many vacation days do I get?", nil)
//	window := mgr.BuildContextTokens(s, 4000)
//	_ = window
package session
