// Package daemonrun runs the deckhand daemon as a foreground process: logger
// setup, preflight logging, pid file, the daemon itself and its IPC socket.
package daemonrun
