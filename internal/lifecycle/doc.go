// Package lifecycle tracks the per-market subscription state machine.
//
// Each market moves Discovered -> Subscribed -> Determined -> Unsubscribed.
// Unsubscribed is terminal; late frames for terminal markets are dropped by
// the dispatcher. The tracker also owns the session-wide termination
// predicate: Done() closes the moment every tracked market is Unsubscribed,
// so shutdown is event-driven rather than polled.
package lifecycle
