// Package publisher mirrors relayed tick frames to Kafka.
//
// The mirror is an optional sink on the fan-out hub: every frame
// published to clients is also enqueued here and written to a Kafka
// topic keyed by account name. Enqueueing never blocks the hot path;
// frames are dropped when the buffer is full.
package publisher
