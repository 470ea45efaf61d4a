// Package feed implements the upstream market-data connection.
//
// One Conn owns one live, authenticated WebSocket connection to the
// exchange for one account. It normalizes inbound instrument messages
// into ticks, publishes them for fan-out, and runs its own reconnect
// loop. A Conn terminates only when its owner reports that no
// subscriber interest remains at a reconnect decision point.
package feed
