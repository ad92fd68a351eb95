// Package quota tracks consumption against a rolling time-window quota and
// gates callers through a blocking admission check.
//
// A Tracker admits callers immediately while the window has comfortable
// headroom, stretches admissions along a quadratic delay curve as consumption
// approaches the window limit, and parks callers in a FIFO queue once the
// window is critically full. Queued callers are released as the window rolls
// over or as authoritative server feedback reports new headroom.
//
// Admission is never an error under quota pressure: pressure degrades to
// delay or queueing. The only error paths are context cancellation while
// waiting.
package quota
