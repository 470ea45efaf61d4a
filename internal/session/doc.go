// Package session implements the client-facing WebSocket sessions.
//
// Each connected client gets one Session: it decodes and validates
// control messages, dispatches subscribe/unsubscribe to the registry,
// tracks which accounts the client holds so teardown on disconnect is
// symmetric, and writes outbound frames back to the client.
package session
