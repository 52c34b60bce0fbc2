// Package report renders recorded tracking runs: an HTML report of
// per-frame association stats and track lifetimes, and a PNG trail plot
// of every track's path through the arena.
package report
