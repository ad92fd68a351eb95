// Package batch drives concurrent execution of work lists against a
// quota-limited remote API.
//
// A Runner partitions the (optionally deduplicated) work list into fixed-size
// chunks and executes them strictly in order. Within a chunk, items fan out
// through a concurrency gate; each item passes quota admission, then runs
// under the retry policy. Per-item failures never abort the run: the terminal
// Result carries both successes and errors. Progress snapshots are emitted at
// chunk boundaries, and cancellation is cooperative: admitted calls finish,
// no new ones start.
package batch
