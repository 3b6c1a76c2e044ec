// Package fd provides a bounded-integer constraint store with level-stamped
// trailing, a FIFO propagation queue and a depth-first search driver.
//
// Variables carry an interval domain. Constraints narrow those intervals
// through Store.In, Store.InMin and Store.InMax, which trail the old bounds
// once per level and notify every watching constraint. Search opens a level
// per choice point and removes it on failure, which restores variables,
// trailed cells and entailment flags, then lets LevelListeners rebuild any
// state they derived from the old bounds.
//
// Failures are ordinary errors wrapping ErrInconsistent; use IsFailure to
// tell them apart from usage errors.
package fd
