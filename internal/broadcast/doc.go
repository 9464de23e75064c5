// Package broadcast is the scheduling and dispatch engine.
//
// A single Poller wakes on a fixed interval and walks every configured
// channel's schedules. Eligibility is decided by the pure evaluator in
// package schedule; the Tracker adds repeat-period dedup and an in-flight
// guard; the Executor performs the side-effecting dispatch sequence
// (delete-previous, send with content-type fallback, pin, state patch).
//
// Failures are isolated per (channel, schedule) pair: a bad schedule or a
// down channel never stops the loop, it is simply retried on the next tick.
package broadcast
