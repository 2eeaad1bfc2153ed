// Package notifications delivers deck events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each event family (connection, cue, format, errors) can be
// switched off individually so a busy show does not flood the topic.
//
// Dispatcher adapts a Service to the session's side-effect hooks.
package notifications
