// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zmq is a reference env.Transport implementation over
// github.com/go-zeromq/zmq4 pub/sub sockets (spec §1 "concrete
// transport libraries" is named an external collaborator; this is the
// admissible reference one). It is grounded on the teacher's own
// ZeroMQ wrapper idiom (networking/zmq4.Transport's thin wrapper over
// a shared transport, utils/transport/zmq.Transport's PUB/SUB +
// background-receive-loop shape), adapted from a multi-socket
// pub/sub/router/dealer peer mesh down to the single PUB+SUB pair the
// Agent Runtime actually needs: one bind for outbound gossip, one dial
// per known peer for inbound.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/galanafai/godview/env"
)

// ErrClosed is returned by Send/Recv once Close has completed (spec
// §5 "in-flight recvs return a shutdown sentinel").
var ErrClosed = errors.New("zmq: transport closed")

// ErrSendTimeout is returned when Send could not hand the message to
// the PUB socket within the configured timeout (spec §6 "Transport
// sends have an upper-bound timeout").
var ErrSendTimeout = errors.New("zmq: send timed out")

// Transport is a PUB/SUB pub/sub transport: outbound gossip is
// published on one bound PUB socket, inbound gossip is read from a SUB
// socket dialed to every known peer's PUB endpoint. Topic filtering is
// done in the application layer (receiveLoop checks the subscribed
// topic set) rather than at the ZMQ socket level, since an agent's
// shard subscriptions change as it moves (spec §6 "Subscribers
// subscribe to their current shard and its 1-ring").
type Transport struct {
	ctx    context.Context
	cancel context.CancelFunc

	pub zmq4.Socket
	sub zmq4.Socket

	sendTimeout time.Duration

	mu     sync.RWMutex
	topics map[string]bool
	closed bool

	inbox chan env.Packet
	wg    sync.WaitGroup
}

var _ env.Transport = (*Transport)(nil)

// Config holds the wiring a Transport needs at construction: the local
// PUB bind endpoint, and the peer PUB endpoints to dial for inbound
// gossip (spec's Environment Interface names transport send/recv as a
// capability; peer discovery itself is an external collaborator's
// concern, so the peer list is supplied by the caller).
type Config struct {
	BindEndpoint  string
	PeerEndpoints []string
	SendTimeout   time.Duration
	InboxCapacity int
}

// New binds the PUB socket, dials the SUB socket to every peer, and
// starts the background receive loop.
func New(parent context.Context, cfg Config) (*Transport, error) {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 2 * time.Second
	}
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = 4096
	}

	ctx, cancel := context.WithCancel(parent)

	pub := zmq4.NewPub(ctx)
	if err := pub.Listen(cfg.BindEndpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("zmq: bind pub socket %s: %w", cfg.BindEndpoint, err)
	}

	sub := zmq4.NewSub(ctx)
	// Subscribe to every topic at the socket level; per-shard interest
	// is enforced in receiveLoop against the topics set so Subscribe
	// can be called at any time without re-dialing.
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = pub.Close()
		cancel()
		return nil, fmt.Errorf("zmq: set subscribe filter: %w", err)
	}
	for _, peer := range cfg.PeerEndpoints {
		if err := sub.Dial(peer); err != nil {
			_ = pub.Close()
			_ = sub.Close()
			cancel()
			return nil, fmt.Errorf("zmq: dial peer %s: %w", peer, err)
		}
	}

	t := &Transport{
		ctx:         ctx,
		cancel:      cancel,
		pub:         pub,
		sub:         sub,
		sendTimeout: cfg.SendTimeout,
		topics:      make(map[string]bool),
		inbox:       make(chan env.Packet, cfg.InboxCapacity),
	}

	t.wg.Add(1)
	go t.receiveLoop()

	return t, nil
}

// Send publishes payload as a two-frame message (topic, payload) on
// the PUB socket, bounded by the configured send timeout (spec §5
// "Timeouts": "Transport sends have an upper-bound timeout ... after
// which they fail with TransportError; the agent continues").
func (t *Transport) Send(ctx context.Context, topic string, payload []byte) error {
	if t.isClosed() {
		return ErrClosed
	}

	done := make(chan error, 1)
	go func() {
		msg := zmq4.NewMsgFrom([]byte(topic), payload)
		done <- t.pub.Send(msg)
	}()

	timer := time.NewTimer(t.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrClosed
	}
}

// Subscribe records topic as one this transport's Recv should surface;
// filtering happens in receiveLoop (see Transport doc comment).
func (t *Transport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.topics[topic] = true
	return nil
}

// Recv yields the next packet addressed to a subscribed topic, or
// ctx.Err() / ErrClosed once the transport shuts down.
func (t *Transport) Recv(ctx context.Context) (env.Packet, error) {
	// Prefer an already-queued packet over an already-expired ctx (see
	// env.Manual's manualTransport.Recv for why this matters to a
	// poll-style caller).
	select {
	case p, ok := <-t.inbox:
		if !ok {
			return env.Packet{}, ErrClosed
		}
		return p, nil
	default:
	}

	select {
	case p, ok := <-t.inbox:
		if !ok {
			return env.Packet{}, ErrClosed
		}
		return p, nil
	case <-ctx.Done():
		return env.Packet{}, ctx.Err()
	case <-t.ctx.Done():
		return env.Packet{}, ErrClosed
	}
}

// Close shuts down both sockets and stops the receive loop.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()

	pubErr := t.pub.Close()
	subErr := t.sub.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

func (t *Transport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Transport) subscribed(topic string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.topics[topic]
}

// receiveLoop drains the SUB socket and forwards subscribed-topic
// packets into the inbox, dropping non-matching topics and, once the
// inbox is full, dropping the newest packet rather than blocking (ZMQ
// PUB/SUB is already lossy by design; this inbox is just flow control
// between the socket and Recv, not the spec's backpressure bound —
// that is runtime.Agent's gossip.InboundQueue, sized and telemetered
// independently downstream of Recv).
func (t *Transport) receiveLoop() {
	defer t.wg.Done()
	defer close(t.inbox)

	for {
		msg, err := t.sub.Recv()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}
		topic := string(msg.Frames[0])
		if !t.subscribed(topic) {
			continue
		}
		p := env.Packet{Topic: topic, Payload: msg.Frames[1]}
		select {
		case t.inbox <- p:
		default:
		}
		if t.ctx.Err() != nil {
			return
		}
	}
}
