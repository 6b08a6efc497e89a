// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galanafai/godview/env"
)

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a master key seeding this agent's HKDF-derived identity",
		Long: `keygen writes a random 32-byte master key, hex-encoded, to stdout (or
--out). Pass the resulting file to "run --master-key-file"; the agent
derives its signing keypair from it via HKDF (golang.org/x/crypto/hkdf),
so the same master key always yields the same identity.

With --root, it instead generates a direct Ed25519 keypair for a trust
root authority (no HKDF derivation): the private key half is what
"token issue --root-key-file" signs with, the public half is what
every agent's "run --root-key" verifies against.`,
		RunE: runKeygen,
	}
	cmd.Flags().String("out", "", "write the key to this path instead of stdout")
	cmd.Flags().Bool("root", false, "generate a root authority keypair instead of an agent master key")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	root, _ := cmd.Flags().GetBool("root")

	if root {
		return runRootKeygen(cmd, out)
	}

	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	encoded := hex.EncodeToString(masterKey)

	if out == "" {
		fmt.Println(encoded)
		return nil
	}
	if err := os.WriteFile(out, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("keygen: write %s: %w", out, err)
	}

	osEnv := env.NewOS(masterKey, nil)
	pub, _, err := osEnv.DeriveKeypair([]byte("agent-identity"))
	if err != nil {
		return fmt.Errorf("keygen: derive identity: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote master key to %s (agent public key: %x)\n", out, pub)
	return nil
}

func runRootKeygen(cmd *cobra.Command, out string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	encodedPriv := hex.EncodeToString(priv)

	if out == "" {
		fmt.Println(encodedPriv)
		fmt.Fprintf(cmd.ErrOrStderr(), "root public key: %x\n", pub)
		return nil
	}
	if err := os.WriteFile(out, []byte(encodedPriv+"\n"), 0o600); err != nil {
		return fmt.Errorf("keygen: write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote root private key to %s (public key: %x)\n", out, pub)
	return nil
}
