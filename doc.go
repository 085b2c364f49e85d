// Package scheduler is an in-process periodic/deferred task scheduler.
//
// Callers register a Schedule, a unit of work bound with an interval (or an
// absolute point in time) and a fire budget. A polling loop scans registered
// schedules once per check interval and dispatches due ones as independent
// fire-and-forget units of work, without awaiting their completion.
//
// Schedules live in one of four buckets: active-visible, hidden, finished
// and canceled. Administrative calls move schedules between buckets; the
// poll loop retires exhausted ones. The ttlmap subpackage builds a keyed
// time-to-live container on top of the same primitive.
package scheduler
