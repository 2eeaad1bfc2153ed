// Command deckhand controls a HyperDeck recorder through the deckhand daemon.
//
// The hidden `daemon` subcommand runs the long-lived process that owns the
// device connection. Every other subcommand talks to that process over its
// unix socket, apart from `config` and `check`, which work locally.
package main
