// Package hyperdeck speaks the HyperDeck Ethernet text protocol.
//
// A Client owns one TCP control connection. Commands are written one at a
// time in FIFO order and each waits for its reply before the next is sent.
// Replies that arrive after their command timed out are discarded by counting
// orphans, which is safe because the device answers strictly in order.
// Asynchronous 5xx blocks are delivered on a bounded event channel; blocks that
// do not fit are dropped and counted rather than stalling the reader.
//
// The package has no notion of session state. Typed decoders turn responses
// into sparse deck updates for the caller to merge.
package hyperdeck
