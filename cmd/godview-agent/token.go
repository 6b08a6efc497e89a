// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/galanafai/godview/trust"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage capability tokens (spec §3 CapabilityToken, §4.2 issue_token)",
	}
	cmd.AddCommand(tokenIssueCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Root-authority-sign a fresh single-link capability token",
		RunE:  runTokenIssue,
	}
	cmd.Flags().String("root-key-file", "", "path to the root authority's hex-encoded Ed25519 private key (required)")
	cmd.Flags().String("holder", "", "hex-encoded Ed25519 public key of the token's holder (required)")
	cmd.Flags().StringArray("shard-prefix", nil, "shard-key prefix the holder may publish to (repeatable; empty means any shard)")
	cmd.Flags().StringArray("operation", []string{"publish"}, "operation(s) the holder may perform (repeatable; \"*\" for any)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "validity window starting now")
	cmd.Flags().String("out", "", "write the token JSON to this path instead of stdout")
	return cmd
}

func runTokenIssue(cmd *cobra.Command, _ []string) error {
	rootKeyFile, _ := cmd.Flags().GetString("root-key-file")
	holderHex, _ := cmd.Flags().GetString("holder")
	shardPrefixes, _ := cmd.Flags().GetStringArray("shard-prefix")
	operations, _ := cmd.Flags().GetStringArray("operation")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	out, _ := cmd.Flags().GetString("out")

	if rootKeyFile == "" || holderHex == "" {
		return fmt.Errorf("token issue: --root-key-file and --holder are required")
	}

	rootPriv, err := readPrivateKeyFile(rootKeyFile)
	if err != nil {
		return fmt.Errorf("token issue: root key: %w", err)
	}

	holder, err := parsePublicKey(holderHex)
	if err != nil {
		return fmt.Errorf("token issue: holder key: %w", err)
	}

	token := trust.IssueToken(rootPriv, holder, []trust.Rule{
		{ShardPrefixes: shardPrefixes, Operations: operations},
	}, ttl, time.Now())

	encoded, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("token issue: encode: %w", err)
	}

	if out == "" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(out, encoded, 0o600)
}

func readPrivateKeyFile(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(trimNewline(string(raw)))
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}
