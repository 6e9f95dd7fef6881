// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/rollup"
)

const (
	defaultLogLevel        = "info"
	defaultAPIPort         = uint16(8080)
	defaultMetricsPort     = uint16(8081)
	defaultInputDuration   = uint64(86400)
	defaultChallengePeriod = uint64(604800)

	usageText = `
Usage:
rollupnode --config-file path-to-config            Run the rollup node with a JSON configuration file
rollupnode --version                               Display version
rollupnode --help                                  Display usage text
`
)

// ValidatorConfig identifies one roster validator.
type ValidatorConfig struct {
	// NodeID is the validator's node ID, in CB58.
	NodeID string `mapstructure:"node-id" json:"node-id"`

	// PublicKey is the validator's compressed BLS public key in hex,
	// used to verify claim signatures. Optional; when no validator
	// carries one, claim signatures are not checked.
	PublicKey string `mapstructure:"public-key" json:"public-key"`

	// parsed during Validate
	id ids.NodeID
}

// GetID returns the parsed node ID. Must only be called after Validate.
func (v *ValidatorConfig) GetID() ids.NodeID {
	return v.id
}

// Config is the rollup node configuration, read from a JSON file.
type Config struct {
	LogLevel    string `mapstructure:"log-level" json:"log-level"`
	APIPort     uint16 `mapstructure:"api-port" json:"api-port"`
	MetricsPort uint16 `mapstructure:"metrics-port" json:"metrics-port"`

	// InputDuration is how long each epoch accumulates inputs, in
	// seconds.
	InputDuration uint64 `mapstructure:"input-duration" json:"input-duration"`

	// ChallengePeriod is how long a sealed epoch stays open to
	// challenges after the last move, in seconds.
	ChallengePeriod uint64 `mapstructure:"challenge-period" json:"challenge-period"`

	// OrchestratorID is the node ID the managed components trust as
	// their single caller, in CB58.
	OrchestratorID string `mapstructure:"orchestrator-id" json:"orchestrator-id"`

	// Validators is the fixed roster. Order is significant: it assigns
	// the permanent bit indices.
	Validators []*ValidatorConfig `mapstructure:"validators" json:"validators"`

	// parsed during Validate
	orchestratorID ids.NodeID
}

// Validate the configuration, parsing node IDs as a side effect.
func (c *Config) Validate() error {
	if c.InputDuration == 0 {
		return fmt.Errorf("%q must be positive", InputDurationKey)
	}
	if c.ChallengePeriod == 0 {
		return fmt.Errorf("%q must be positive", ChallengePeriodKey)
	}

	orchestratorID, err := ids.NodeIDFromString(c.OrchestratorID)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", OrchestratorIDKey, err)
	}
	c.orchestratorID = orchestratorID

	if len(c.Validators) == 0 {
		return fmt.Errorf("%q must not be empty", ValidatorsKey)
	}
	if len(c.Validators) > rollup.MaxValidators {
		return fmt.Errorf(
			"%q holds %d entries, the roster is capped at %d",
			ValidatorsKey,
			len(c.Validators),
			rollup.MaxValidators,
		)
	}

	seen := make(map[ids.NodeID]struct{}, len(c.Validators))
	for i, vdr := range c.Validators {
		id, err := ids.NodeIDFromString(vdr.NodeID)
		if err != nil {
			return fmt.Errorf("failed to parse validator %d node ID: %w", i, err)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate validator node ID %s", id)
		}
		seen[id] = struct{}{}
		vdr.id = id
	}
	return nil
}

// GetOrchestratorID returns the parsed orchestrator node ID. Must only
// be called after Validate.
func (c *Config) GetOrchestratorID() ids.NodeID {
	return c.orchestratorID
}

// GetValidatorIDs returns the parsed roster node IDs in configured
// order. Must only be called after Validate.
func (c *Config) GetValidatorIDs() []ids.NodeID {
	out := make([]ids.NodeID, len(c.Validators))
	for i, vdr := range c.Validators {
		out[i] = vdr.id
	}
	return out
}

func DisplayUsageText() {
	fmt.Printf("%s\n", usageText)
}
