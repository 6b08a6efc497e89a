// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"encoding/json"
	"time"

	"github.com/galanafai/godview/env"
	"github.com/galanafai/godview/metrics"
	"github.com/galanafai/godview/trust"
)

// MaxBatchSize bounds how many packets one outbound envelope may carry
// (spec §4.5.6 "emits a bounded subset").
const MaxBatchSize = 256

// Engine is the Message Layer: it signs and addresses outbound
// batches, and verifies and decodes inbound ones, delegating all trust
// decisions to trust.Engine and all byte movement to env.Transport.
type Engine struct {
	trust     *trust.Engine
	transport env.Transport
	metrics   *metrics.Registry
}

// NewEngine builds a gossip Engine over a signed transport.
func NewEngine(trustEngine *trust.Engine, transport env.Transport, reg *metrics.Registry) *Engine {
	return &Engine{trust: trustEngine, transport: transport, metrics: reg}
}

// SubscribeShards subscribes to the topic of every shard key given;
// runtime.Agent.SubscribeAt passes a shard plus its 1-ring (spec §6
// "Subscribers subscribe to their current shard and its 1-ring").
func (e *Engine) SubscribeShards(shardKeys []string) error {
	for _, k := range shardKeys {
		if err := e.transport.Subscribe(TopicForShard(k)); err != nil {
			return err
		}
	}
	return nil
}

// Publish signs and sends one bounded batch of packets under shardKey,
// accompanied by token (spec §4.5.6 / §6 "Topic layout").
func (e *Engine) Publish(ctx context.Context, shardKey string, packets []WirePacket, token trust.Token, now time.Time) error {
	if len(packets) > MaxBatchSize {
		return ErrBatchTooLarge
	}

	payload, err := encodeBatch(packets, now)
	if err != nil {
		return err
	}
	signed := e.trust.Sign(payload)
	envelope := Envelope{Signed: signed, Token: token}

	wire, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return e.transport.Send(ctx, TopicForShard(shardKey), wire)
}

// Inbound is one verified, decoded batch of observation packets.
type Inbound struct {
	ShardKey string
	Packets  []WirePacket
	SentAt   time.Time
}

// Receive pulls the next packet off transport, verifies its envelope,
// and decodes its batch (spec §4.2 Verify pipeline + §6 "Topic
// layout"). Any failure is counted under its taxonomy reason and
// returned so the caller can drop-and-continue per spec §7.
func (e *Engine) Receive(ctx context.Context, now time.Time) (Inbound, error) {
	p, err := e.transport.Recv(ctx)
	if err != nil {
		return Inbound{}, err
	}

	shardKey, err := shardKeyFromTopic(p.Topic)
	if err != nil {
		e.countDropped("malformed_topic")
		return Inbound{}, err
	}

	var envelope Envelope
	if jsonErr := json.Unmarshal(p.Payload, &envelope); jsonErr != nil {
		e.countDropped("malformed_envelope")
		return Inbound{}, ErrEnvelopeMalformed
	}

	b, err := decodeBatch(envelope.Signed.Payload)
	if err != nil {
		e.countDropped("malformed_payload")
		return Inbound{}, err
	}

	resourceKey := ResourceKeyForShard(shardKey)
	if err := e.trust.Verify(envelope.Signed, envelope.Token, resourceKey, OperationPublish, b.sentAtTime(), now); err != nil {
		e.countDropped(trustDropReason(err))
		return Inbound{}, err
	}

	return Inbound{ShardKey: shardKey, Packets: b.Packets, SentAt: b.sentAtTime()}, nil
}

func (e *Engine) countDropped(reason string) {
	if e.metrics != nil && e.metrics.PacketsDropped != nil {
		e.metrics.PacketsDropped.WithLabelValues(reason).Inc()
	}
}

func trustDropReason(err error) string {
	switch err {
	case trust.ErrInvalidSignature:
		return "invalid_signature"
	case trust.ErrRevokedKey:
		return "revoked_key"
	case trust.ErrMissingToken:
		return "missing_token"
	case trust.ErrInvalidToken:
		return "invalid_token"
	case trust.ErrExpiredToken:
		return "expired_token"
	case trust.ErrPolicyDenied:
		return "policy_denied"
	case trust.ErrClockSkew:
		return "clock_skew"
	default:
		return "unknown"
	}
}
