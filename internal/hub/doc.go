// Package hub implements the fan-out of normalized ticks to client
// sessions.
//
// The hub maps an account name to the set of client sessions currently
// interested in that account. Delivery to one recipient never blocks
// delivery to another: recipients accept frames without blocking and
// report drops themselves.
package hub
