// Package daemon coordinates the long-running deckhand process.
//
// It wires configuration, the device session, the OSC bridge, push
// notifications and the HTTP API into a single lifecycle with flock-based
// locking. A HyperDeck accepts a single control connection, so the lock is
// keyed by device address and a second daemon for the same recorder refuses
// to start.
//
// Keep orchestration logic here: protocol and state handling live in the
// session package while the daemon focuses on startup, shutdown and the
// surfaces that expose the session.
package daemon
