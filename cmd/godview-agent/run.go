// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/galanafai/godview/config"
	"github.com/galanafai/godview/env"
	"github.com/galanafai/godview/gossip"
	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/log"
	"github.com/galanafai/godview/metrics"
	"github.com/galanafai/godview/runtime"
	"github.com/galanafai/godview/spatial"
	"github.com/galanafai/godview/tracking"
	"github.com/galanafai/godview/transport/zmq"
	"github.com/galanafai/godview/trust"
	"github.com/galanafai/godview/trust/store"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a GodView agent until signaled to stop",
		RunE:  runAgent,
	}

	cmd.Flags().String("preset", "default", "base configuration preset: default, urban, highway, local")
	cmd.Flags().String("config", "", "path to a YAML file overriding the preset (spec §6 \"Configuration\")")
	cmd.Flags().String("data-dir", "./godview-data", "directory for the revocation-set database")
	cmd.Flags().String("master-key-file", "", "path to a hex-encoded master key seeding this agent's derived identity (required)")
	cmd.Flags().String("root-key", "", "hex-encoded Ed25519 public key of the trust root authority (required)")
	cmd.Flags().String("token-file", "", "path to a JSON capability token authorizing this agent's publishes (required)")
	cmd.Flags().String("bind", "tcp://*:5555", "ZeroMQ PUB bind endpoint for outbound gossip")
	cmd.Flags().StringArray("peer", nil, "ZeroMQ PUB endpoint of a peer to dial for inbound gossip (repeatable)")
	cmd.Flags().String("metrics-addr", ":9090", "address to serve Prometheus /metrics on; empty disables")
	cmd.Flags().Float64("lat", 0, "initial latitude")
	cmd.Flags().Float64("lon", 0, "initial longitude")
	cmd.Flags().Float64("alt", 0, "initial altitude, meters")
	cmd.Flags().Bool("dev", false, "use a development (console) logger instead of production JSON")

	return cmd
}

func runAgent(cmd *cobra.Command, _ []string) error {
	preset, _ := cmd.Flags().GetString("preset")
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	masterKeyFile, _ := cmd.Flags().GetString("master-key-file")
	rootKeyHex, _ := cmd.Flags().GetString("root-key")
	tokenFile, _ := cmd.Flags().GetString("token-file")
	bind, _ := cmd.Flags().GetString("bind")
	peers, _ := cmd.Flags().GetStringArray("peer")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	alt, _ := cmd.Flags().GetFloat64("alt")
	dev, _ := cmd.Flags().GetBool("dev")

	if masterKeyFile == "" || rootKeyHex == "" || tokenFile == "" {
		return fmt.Errorf("run: --master-key-file, --root-key, and --token-file are all required")
	}

	cfg, err := loadConfig(preset, configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(dev)
	if err != nil {
		return fmt.Errorf("run: build logger: %w", err)
	}
	defer logger.Sync()

	masterKey, err := readHexFile(masterKeyFile)
	if err != nil {
		return fmt.Errorf("run: master key: %w", err)
	}

	rootKey, err := parsePublicKey(rootKeyHex)
	if err != nil {
		return fmt.Errorf("run: root key: %w", err)
	}

	token, err := readToken(tokenFile)
	if err != nil {
		return fmt.Errorf("run: token file: %w", err)
	}

	db, err := store.Open(filepath.Join(dataDir, "revocations"))
	if err != nil {
		return fmt.Errorf("run: open revocation store: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := zmq.New(ctx, zmq.Config{BindEndpoint: bind, PeerEndpoints: peers})
	if err != nil {
		return fmt.Errorf("run: build transport: %w", err)
	}
	defer transport.Close()

	osEnv := env.NewOS(masterKey, transport)

	pub, priv, err := osEnv.DeriveKeypair([]byte("agent-identity"))
	if err != nil {
		return fmt.Errorf("run: derive identity: %w", err)
	}
	var agentKey ids.PublicKey
	copy(agentKey[:], pub)

	trustCfg := trust.Config{RootKey: rootKey, MaxPast: cfg.MaxSkew / 2, MaxFuture: cfg.MaxSkew / 2}
	trustEngine, err := trust.NewEngine(trustCfg, priv, agentKey, db)
	if err != nil {
		return fmt.Errorf("run: build trust engine: %w", err)
	}

	index := spatial.NewIndex(cfg.H3Resolution, cfg.CellEdge, cfg.EdgeHalo)
	index.SetHexEdgeMeters(cfg.H3EdgeMeters())

	reg := prometheus.NewRegistry()
	metricsReg, err := metrics.NewRegistry(reg)
	if err != nil {
		return fmt.Errorf("run: build metrics registry: %w", err)
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = serveMetrics(osEnv, logger, reg, metricsAddr)
	}

	trackingEngine := tracking.NewEngine(cfg, index, metricsReg, logger)
	gossipEngine := gossip.NewEngine(trustEngine, osEnv.Transport(), metricsReg)

	agent := runtime.New(cfg, osEnv, trustEngine, index, trackingEngine, gossipEngine, metricsReg, logger, token)

	if err := agent.SubscribeAt(spatial.Position{Lat: lat, Lon: lon, Alt: alt}); err != nil {
		return fmt.Errorf("run: subscribe at initial position: %w", err)
	}

	logger.Info("godview-agent starting", zap.String("public_key", agentKey.String()))

	runErr := agent.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	osEnv.Wait()

	if runErr != nil {
		return fmt.Errorf("run: agent loop: %w", runErr)
	}
	logger.Info("godview-agent stopped cleanly")
	return nil
}

// serveMetrics spawns the Prometheus scrape endpoint as an auxiliary
// goroutine that never touches engine state (spec §5 "Spawn launches
// auxiliary goroutines ... e.g. a metrics-scrape HTTP handler"). The
// spawned task's own ctx is not cancellation-bearing (env.OS.Spawn
// runs every task against context.Background()), so shutdown is
// driven explicitly by the caller via the returned *http.Server once
// Agent.Run returns.
func serveMetrics(osEnv *env.OS, logger log.Logger, reg *prometheus.Registry, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	osEnv.Spawn(func(_ context.Context) {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	})

	return srv
}

func loadConfig(preset, path string) (config.Config, error) {
	base, err := config.NewBuilder().FromPreset(preset).Build()
	if err != nil {
		return config.Config{}, fmt.Errorf("unknown preset: %w", err)
	}
	if path == "" {
		return base, nil
	}
	return config.LoadFileOverPreset(path, base)
}

func newLogger(dev bool) (log.Logger, error) {
	if dev {
		return log.NewZapDevelopment()
	}
	return log.NewZap()
}

func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(trimNewline(string(raw)))
}

func parsePublicKey(hexKey string) (ids.PublicKey, error) {
	decoded, err := hex.DecodeString(trimNewline(hexKey))
	if err != nil {
		return ids.PublicKey{}, err
	}
	var pk ids.PublicKey
	if len(decoded) != len(pk) {
		return pk, fmt.Errorf("public key must be %d bytes, got %d", len(pk), len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

func readToken(path string) (trust.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return trust.Token{}, err
	}
	var token trust.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return trust.Token{}, err
	}
	return token, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
