// Package jobstate persists the two records that survive host restarts: the
// polled progress record and the active-job registry. Each is a single JSON
// file replaced atomically on every write; there is exactly one writer at a
// time by construction (the supervisor during job start, the worker for the
// rest of the job), so no locking discipline is needed beyond that.
package jobstate
