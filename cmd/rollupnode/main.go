// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luxfi/rollup"
	"github.com/luxfi/rollup/api"
	"github.com/luxfi/rollup/bridge"
	"github.com/luxfi/rollup/config"
	"github.com/luxfi/rollup/healthcheck"
	"github.com/luxfi/rollup/inputs"
	"github.com/luxfi/rollup/metrics"
	"github.com/luxfi/rollup/node"
	"github.com/luxfi/rollup/outputs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rollupnode",
	Short: "Optimistic rollup validator node",
	Long: `rollupnode runs an optimistic rollup validator node: it accumulates
inputs into epochs, collects signed claims from a fixed validator roster,
records dispute outcomes, and executes vouchers of finalized epochs.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decodePortalCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rollup node",
	Long:  `Run the rollup node with the given JSON configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := pflag.NewFlagSet("rollupnode", pflag.ContinueOnError)
		fs.String(config.ConfigFileKey, os.Getenv(config.ConfigFileEnvKey), "Path to the JSON configuration file")
		if err := fs.Parse(args); err != nil {
			return err
		}

		v, err := config.BuildViper(fs)
		if err != nil {
			return fmt.Errorf("couldn't configure flags: %w", err)
		}

		cfg, err := config.NewConfig(v)
		if err != nil {
			return fmt.Errorf("couldn't build config: %w", err)
		}

		return run(cfg)
	},
}

func run(cfg config.Config) error {
	logger := log.NewLogger("rollup-node")
	logger.Info("Initializing rollup node",
		log.String("version", version),
		log.Int("validators", len(cfg.Validators)),
	)

	registry := metrics.StartMetricsServer(logger, cfg.MetricsPort)
	m := metrics.NewRollupMetrics(registry)

	orchestratorID := cfg.GetOrchestratorID()

	manager, err := rollup.NewValidatorManager(
		orchestratorID,
		cfg.GetValidatorIDs(),
		logger,
		rollup.LogNotifier{Log: logger},
	)
	if err != nil {
		return fmt.Errorf("couldn't create validator manager: %w", err)
	}

	box, err := inputs.NewBox(orchestratorID, logger)
	if err != nil {
		return fmt.Errorf("couldn't create input box: %w", err)
	}

	executor, err := outputs.NewExecutor(
		orchestratorID,
		outputs.DefaultInputTreeHeight,
		outputs.DefaultOutputTreeHeight,
		executePortalVoucher(logger),
		logger,
	)
	if err != nil {
		return fmt.Errorf("couldn't create voucher executor: %w", err)
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return fmt.Errorf("couldn't build claim verifier: %w", err)
	}

	service, err := node.New(
		node.Config{
			Self:              orchestratorID,
			InputDuration:     cfg.InputDuration,
			ChallengePeriod:   cfg.ChallengePeriod,
			CreationTimestamp: uint64(time.Now().Unix()),
		},
		manager,
		box,
		executor,
		verifier,
		nil,
		logger,
		m,
	)
	if err != nil {
		return fmt.Errorf("couldn't create node service: %w", err)
	}

	mux := http.NewServeMux()
	api.RegisterHandlers(logger, mux, service)
	healthcheck.HandleHealthCheckRequest(mux, func(context.Context) error {
		// The service is healthy as long as its clock advances past the
		// creation timestamp; a stuck clock would freeze sealing.
		if service.Now() == 0 {
			return fmt.Errorf("clock reads zero")
		}
		return nil
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	logger.Info("Starting API server", log.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

// buildVerifier returns a BLS verifier when the config registers public
// keys, and no verification otherwise. Partial registries are rejected:
// either every validator signs its claims or none does.
func buildVerifier(cfg config.Config) (node.ClaimVerifier, error) {
	keys := make(map[ids.NodeID][]byte)
	for _, vdr := range cfg.Validators {
		if vdr.PublicKey == "" {
			continue
		}
		raw, err := hex.DecodeString(vdr.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key of %s: %w", vdr.NodeID, err)
		}
		keys[vdr.GetID()] = raw
	}
	if len(keys) == 0 {
		return node.NoopVerifier{}, nil
	}
	if len(keys) != len(cfg.Validators) {
		return nil, fmt.Errorf(
			"%d of %d validators registered a public key",
			len(keys),
			len(cfg.Validators),
		)
	}
	return node.NewBLSVerifier(keys)
}

// executePortalVoucher parses executed voucher payloads as portal
// operations and logs them. Settlement against an external chain hooks
// in here.
func executePortalVoucher(logger log.Logger) outputs.ExecuteFunc {
	return func(payload []byte) error {
		parsed, err := bridge.ParsePortalPayload(payload)
		if err != nil {
			// Not every voucher is a portal operation.
			logger.Debug("executed opaque voucher", log.Int("payloadLen", len(payload)))
			return nil
		}
		logger.Info("executed portal voucher",
			log.String("operation", parsed.OperationName()),
			log.String("beneficiary", parsed.Beneficiary.Hex()),
			log.String("amount", parsed.Amount.String()),
		)
		return nil
	}
}

var decodePortalCmd = &cobra.Command{
	Use:   "decode-portal",
	Short: "Decode a portal payload",
	Long:  `Decode a hex-encoded portal payload and print its fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payloadHex, err := cmd.Flags().GetString("payload")
		if err != nil {
			return err
		}

		raw, err := hex.DecodeString(payloadHex)
		if err != nil {
			return fmt.Errorf("invalid payload hex: %w", err)
		}

		parsed, err := bridge.ParsePortalPayload(raw)
		if err != nil {
			return fmt.Errorf("couldn't parse portal payload: %w", err)
		}

		fmt.Printf("Portal payload:\n")
		fmt.Printf("  Operation: %s\n", parsed.OperationName())
		fmt.Printf("  Beneficiary: %s\n", parsed.Beneficiary.Hex())
		if parsed.Operation == bridge.OpTokenDeposit {
			fmt.Printf("  Token: %s\n", parsed.Token.Hex())
		}
		fmt.Printf("  Amount: %s\n", parsed.Amount.String())
		if len(parsed.Data) > 0 {
			fmt.Printf("  Data: %x\n", parsed.Data)
		}
		return nil
	},
}

func init() {
	decodePortalCmd.Flags().String("payload", "", "Hex-encoded portal payload")
}
