// Package reconcile removes orphaned artifacts: uploads that lost the
// registry race or whose insert never completed.
//
// A run holds an exclusive file lock so two operators cannot delete the same
// objects at once. Before deleting, the run checks whether a registry entry
// still points at the orphan's reference; content-addressed stores give
// identical bytes identical references, so an orphan can share its object
// with the entry that won the race. Shared objects are kept and the orphan
// row is simply resolved.
package reconcile
