// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip is the Message Layer (spec §6 "External interfaces"):
// it wraps observation/track reports in trust.SignedPacket envelopes,
// addresses them by shard-key topic, and applies outbound batching. The
// ownership-suppression hint is decided by tracking.Engine.ShouldGossip,
// not here.
package gossip

import (
	"fmt"

	"github.com/galanafai/godview/ids"
)

// WirePacket is the canonical observation packet (spec §6 "Observation
// packet (wire payload, canonical fields)"). JSON is the wire format:
// self-describing and byte-exact round-trip reproducible, matching the
// spec's only hard requirement on serialization choice.
type WirePacket struct {
	EntityID    ids.EntityID  `json:"entity_id"`
	Position    [3]float64    `json:"position"` // lat, lon, alt
	Velocity    [3]float64    `json:"velocity"`
	ClassID     uint8         `json:"class_id"`
	Timestamp   float64       `json:"timestamp"` // seconds since Unix epoch
	Confidence  float64       `json:"confidence"`
	PublisherID ids.PublicKey `json:"publisher_id"`
}

// ShardTopicPrefix roots every hazard gossip topic (spec §6 "Topic
// layout": "godview/hazards/<shard-key>").
const ShardTopicPrefix = "godview/hazards/"

// TopicForShard builds the hierarchical topic key for a shard (spec §6
// "Subscribers subscribe to their current shard and its 1-ring" — the
// 1-ring subscription itself is the caller's responsibility, done by
// calling TopicForShard once per neighbor key).
func TopicForShard(shardKey string) string {
	return ShardTopicPrefix + shardKey
}

// ResourceKeyForShard is the capability-token resource key checked by
// trust.Engine.Verify for packets addressed to shardKey; it is the
// topic itself, stripped of the fixed prefix — shard_prefixes in a
// Rule match against this value.
func ResourceKeyForShard(shardKey string) string {
	return shardKey
}

// OperationPublish is the trust-token operation name gossip packets
// are checked against.
const OperationPublish = "publish"

func shardKeyFromTopic(topic string) (string, error) {
	if len(topic) <= len(ShardTopicPrefix) || topic[:len(ShardTopicPrefix)] != ShardTopicPrefix {
		return "", fmt.Errorf("gossip: topic %q missing shard prefix", topic)
	}
	return topic[len(ShardTopicPrefix):], nil
}
