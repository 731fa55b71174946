// Package server is the WebSocket transport of the roomchat relay.
//
// A Hub owns every live connection and the per-room broadcast groups, runs
// the single event loop that feeds decoded frames into the room manager, and
// delivers the manager's roster, chat and private events back to the
// connections. The remaining files cover per-connection pumps, origin
// checks, rate limiting, HTTP routes and server lifecycle.
package server
