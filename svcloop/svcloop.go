// Package svcloop is the core of the svcloop service runner. It provides the
// pieces that keep a single background service alive on a Unix host: a
// schedule that can be poked from the outside, a supervisor loop that never
// lets a failing work unit take the process down, and the signal plumbing
// that ties both to the operating system.
//
// Mechanism of Operation
//
// Scheduling
//
// The supervisor does not sleep for the whole interval between two cycles.
// It wakes up every poll increment (a second by default) and asks the
// Schedule whether a cycle is due. A cycle is due on startup, once the
// interval has elapsed since the last cycle ended, or when someone asked
// for one through Schedule.RequestRun. Run requests come from SIGUSR1 and,
// optionally, from touching a trigger file:
//
//    pkill -USR1 -x myservice
//    touch /run/myservice/trigger
//
// Requests collapse: any number of them before the supervisor looks at the
// schedule again cause exactly one extra cycle.
//
// Failures
//
// A cycle that returns an error or panics is logged with its full detail and
// handed to the Alerter, then the loop carries on. Failed cycles are not
// retried early; the interval is the only backoff.
//
// Journal
//
// Every component reports what it does as typed Events written to a
// Journaler. Package journal fans those events out to an append-only JSON
// file and to the human readable log.
package svcloop
