// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trust

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"time"

	"github.com/galanafai/godview/ids"
)

// Rule is one predicate block in a capability token: what shard
// prefixes and operations a holder may exercise (spec §3
// CapabilityToken: "predicates describe what resource a holder may
// publish to ... a geographic region expressed as a set of shard
// prefixes").
type Rule struct {
	ShardPrefixes []string `json:"shard_prefixes"`
	Operations    []string `json:"operations"`
}

// Permits reports whether the rule allows operation on a resource
// whose shard key is resourceKey.
func (r Rule) Permits(resourceKey, operation string) bool {
	opOK := false
	for _, op := range r.Operations {
		if op == operation || op == "*" {
			opOK = true
			break
		}
	}
	if !opOK {
		return false
	}
	if len(r.ShardPrefixes) == 0 {
		return true
	}
	for _, prefix := range r.ShardPrefixes {
		if strings.HasPrefix(resourceKey, prefix) {
			return true
		}
	}
	return false
}

// link is one signed step in a Token's attenuation chain: the issuer
// (root authority for link 0, the previous link's Holder thereafter)
// grants Holder the Rules within [NotBefore, NotAfter].
type link struct {
	Holder    ids.PublicKey `json:"holder"`
	Rules     []Rule        `json:"rules"`
	NotBefore time.Time     `json:"not_before"`
	NotAfter  time.Time     `json:"not_after"`
}

func (l link) canonicalBytes() []byte {
	// json.Marshal over a fixed struct field order is a stable,
	// byte-exact encoding — sufficient for a signed-and-verified-once
	// payload (spec §6: "any implementation choice ... must be
	// byte-exact round-trip reproducible").
	b, _ := json.Marshal(l)
	return b
}

// Token is a chained, datalog-style authorization credential rooted at
// a well-known authority public key (spec §3 CapabilityToken, §4.2
// issue_token/attenuate).
type Token struct {
	Links      []link      `json:"links"`
	Signatures [][]byte    `json:"signatures"`
}

// IssueToken mints a fresh single-link token granting holder the given
// rules, signed by rootPriv (spec §4.2 "issue_token(rules)").
func IssueToken(rootPriv ed25519.PrivateKey, holder ids.PublicKey, rules []Rule, validFor time.Duration, now time.Time) Token {
	l := link{
		Holder:    holder,
		Rules:     rules,
		NotBefore: now,
		NotAfter:  now.Add(validFor),
	}
	sig := ed25519.Sign(rootPriv, l.canonicalBytes())
	return Token{Links: []link{l}, Signatures: [][]byte{sig}}
}

// Attenuate appends a further-narrowed link to token, signed by
// holderPriv — the current last link's Holder — without contacting the
// root authority (spec §3 "Tokens may be attenuated ... by any holder
// without contacting the authority", §4.2 "attenuate(token, extra_rules)").
//
// extraRules is meant to narrow what newHolder may do, but Attenuate
// itself does not enforce that: a dishonest intermediate holder could
// attenuate with broader rules than it was granted. That is caught at
// verification time instead — verifyChain requires every link in the
// chain, not just the last, to permit the operation (spec §8 "evaluating
// policy is equivalent to evaluating the union of parent and
// attenuation constraints"), so a non-narrowing attenuation never
// grants more than its most restrictive ancestor allowed.
func Attenuate(token Token, holderPriv ed25519.PrivateKey, newHolder ids.PublicKey, extraRules []Rule, validFor time.Duration, now time.Time) Token {
	l := link{
		Holder:    newHolder,
		Rules:     extraRules,
		NotBefore: now,
		NotAfter:  now.Add(validFor),
	}
	sig := ed25519.Sign(holderPriv, l.canonicalBytes())

	out := Token{
		Links:      append(append([]link{}, token.Links...), l),
		Signatures: append(append([][]byte{}, token.Signatures...), sig),
	}
	return out
}

// verifyChain walks the token's links, checking each signature against
// its issuer (rootKey for link 0, the previous link's Holder
// thereafter), each link's validity window against now, and — per spec
// §8's "evaluating policy is equivalent to evaluating the union of
// parent and attenuation constraints" — that every link, not just the
// last, permits operation on resourceKey. Rules only ever restrict, so
// requiring all links to agree is what makes the chain's effective
// grant the intersection of every link's Rules rather than whatever
// the final (possibly dishonestly broadened) link happens to claim.
// Returns the final link's Holder on success.
func verifyChain(token Token, rootKey ids.PublicKey, resourceKey, operation string, now time.Time) (ids.PublicKey, error) {
	if len(token.Links) == 0 {
		return ids.PublicKey{}, ErrMissingToken
	}
	if len(token.Links) != len(token.Signatures) {
		return ids.PublicKey{}, ErrInvalidToken
	}

	issuer := rootKey
	var final link
	for i, l := range token.Links {
		if !ed25519.Verify(issuer[:], l.canonicalBytes(), token.Signatures[i]) {
			return ids.PublicKey{}, ErrInvalidToken
		}
		if now.Before(l.NotBefore) || now.After(l.NotAfter) {
			return ids.PublicKey{}, ErrExpiredToken
		}
		if !permitsAny(l.Rules, resourceKey, operation) {
			return ids.PublicKey{}, ErrPolicyDenied
		}
		issuer = l.Holder
		final = l
	}

	return final.Holder, nil
}

// permitsAny reports whether any rule in rules permits operation on
// resourceKey — the policy check described in spec §4.2 "token permits
// this operation on this resource".
func permitsAny(rules []Rule, resourceKey, operation string) bool {
	for _, r := range rules {
		if r.Permits(resourceKey, operation) {
			return true
		}
	}
	return false
}
