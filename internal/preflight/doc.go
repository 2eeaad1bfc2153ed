// Package preflight provides readiness checks for the recorder and the
// filesystem paths and services deckhand depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start, since a recorder that is powered off now may come up later. The CLI
// "deckhand check" command prints the same results as a table.
//
// Optional features are skipped when their config toggle is off.
package preflight
