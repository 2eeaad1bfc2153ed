// Package config loads, normalizes, and validates deckhand configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DECKHAND_HOST. The Config type centralizes every knob the daemon and CLI
// need: the device address, timecode delivery mode, cue fade lead, the local
// API and socket, OSC bridging and push notifications.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, clamped intervals, and clear validation errors.
package config
