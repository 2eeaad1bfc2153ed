// Package timecode converts HyperDeck display timecode strings into frame
// counts and back.
//
// Rates are resolved from the device's video format identifier through a
// fixed table. Drop-frame rates (29.97 and 59.94) follow the SMPTE counting
// convention where frame labels 0 and 1 (or 0-3 at 59.94) are skipped at the
// start of every minute except each tenth minute. When no rate can be resolved
// the parser still splits a well formed HH:MM:SS:FF string into components but
// reports no frame count, so countdown math is unavailable on that path.
package timecode
