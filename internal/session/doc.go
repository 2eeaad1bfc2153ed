// Package session owns the synchronized view of one connected recorder.
//
// A Session dials the device, runs the initial fetch, and then reconciles
// asynchronous notifications and optional transport polling into a single
// state bundle: transport, slots, configuration, the clip directory, the
// computed timecode display and the cue trigger machine. Callers read that
// state through copy-returning accessors and change the device through
// IssueCommand.
//
// One mutex guards the bundle. Device round trips never run while it is held,
// and cue side effects (fade dispatch, automatic stop) run after it is
// released. A lost connection is reported once and not retried.
package session
