// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command godview-agent is the composition root that wires the four
// engines and the Message Layer into a runnable mesh participant (spec
// §1's "external collaborator" concrete transport/process, spec §6
// "cmd/godview-agent CLI"). It is deliberately thin: everything it
// does is construct real env.OS/transport/zmq/trust.store/spatial/
// tracking/gossip instances and hand them to runtime.Agent.Run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "godview-agent",
	Short: "GodView cooperative-perception mesh agent",
	Long: `godview-agent runs one participant in a GodView cooperative-perception
mesh: it predicts and ages its local track set every tick, ingests and
fuses gossip from nearby peers, and republishes its own observations
bounded by trust-token policy and gossip batching.`,
}

func main() {
	rootCmd.AddCommand(
		runCmd(),
		keygenCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
