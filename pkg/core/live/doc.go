// Package live coordinates a real-time voice brainstorming session: it owns
// the session state machine, tears audio capture and playback up and down
// with the connection, and funnels provider tool calls into the shared
// character document.
//
// The session speaks to the provider through the Transport interface; the
// production implementation lives in pkg/core/providers/geminilive.
package live
