// Package oscbridge connects deckhand to OSC show control.
//
// Server exposes a small OSC control surface (play, stop, record, cue
// arming, clip goto, shuttle) that maps incoming messages onto session
// actions. Emitter implements the session dispatcher and sends an OSC
// message to a show controller, typically QLab, when a cue fade fires.
package oscbridge
