// Package redisbridge connects a twin to the Redis bus: it answers
// commands arriving on the instance's command stream and publishes
// snapshots, alerts and heartbeats for other services.
package redisbridge

import "time"

// HeartbeatChannel carries service.heartbeat messages from every twin.
const HeartbeatChannel = "events:heartbeat"

// ReplyTTL is how long an idle response stream is kept.
const ReplyTTL = 10 * time.Minute

// replyMaxLen caps each response stream.
const replyMaxLen = 1000

// StateKey holds the latest snapshot JSON of an instance.
func StateKey(instance string) string {
	return "twin:state:" + instance
}

// SnapshotChannel is where an instance publishes twin.snapshot messages.
func SnapshotChannel(instance string) string {
	return "events:snapshot:" + instance
}

// AlertChannel is where an instance publishes twin.alert messages.
func AlertChannel(instance string) string {
	return "events:alert:" + instance
}

// AliveKey expires when the instance stops heartbeating.
func AliveKey(instance string) string {
	return "service:" + instance + ":alive"
}
