// Package registry tracks subscriber interest per account and owns the
// lifecycle of upstream feed connections.
//
// The subscriber count — not the liveness of a connection handle — is
// the single source of truth for whether an upstream connection is
// wanted. A feed observes zero interest at its own reconnect decision
// point and stops itself; the registry never force-closes a healthy
// connection.
package registry
