// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"encoding/json"
	"time"

	"github.com/galanafai/godview/trust"
)

// batch is the signed payload: a timestamped group of wire packets
// (spec §4.5.6 "emits a bounded subset of its tracks as signed
// packets"). SentAt is covered by the signature so replay protection
// (spec §4.2) applies to the whole batch, not per-packet.
type batch struct {
	Packets []WirePacket `json:"packets"`
	SentAt  float64      `json:"sent_at"`
}

// Envelope is what actually crosses the wire: a signed batch plus its
// capability token chain (spec §6 "Signed envelope" / "Capability
// token").
type Envelope struct {
	Signed trust.SignedPacket `json:"signed"`
	Token  trust.Token        `json:"token"`
}

func encodeBatch(packets []WirePacket, sentAt time.Time) ([]byte, error) {
	b := batch{Packets: packets, SentAt: float64(sentAt.UnixNano()) / 1e9}
	return json.Marshal(b)
}

func decodeBatch(payload []byte) (batch, error) {
	var b batch
	if err := json.Unmarshal(payload, &b); err != nil {
		return batch{}, ErrEnvelopeMalformed
	}
	return b, nil
}

func (b batch) sentAtTime() time.Time {
	secs := int64(b.SentAt)
	nanos := int64((b.SentAt - float64(secs)) * 1e9)
	return time.Unix(secs, nanos).UTC()
}
