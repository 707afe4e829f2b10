package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const policyFileName = "policy.yaml"

// PolicyConfig is the root configuration structure for the pricing
// policy: the fee rate, the safety/growth split, and the vault account
// ids the split is paid into.
type PolicyConfig struct {
	FeeRate     string `yaml:"fee_rate"`
	SafetyShare string `yaml:"safety_share"`
	SafetyVault string `yaml:"safety_vault"`
	GrowthVault string `yaml:"growth_vault"`
}

// LoadPolicyConfig reads <configDirPath>/policy.yaml, if present, and
// returns the FeePolicy, SplitPolicy and VaultRegistry it describes. If
// the file does not exist, the conventional defaults (1% fee, 50/50
// split, vault:safety/vault:growth) are returned instead.
func LoadPolicyConfig(configDirPath string) (FeePolicy, SplitPolicy, VaultRegistry, error) {
	path := filepath.Join(configDirPath, policyFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultFeePolicy(), DefaultSplitPolicy(), DefaultVaultRegistry(), nil
	}
	if err != nil {
		return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, err
	}
	defer f.Close()

	var cfg PolicyConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, fmt.Errorf("policy: failed to parse %s: %w", policyFileName, err)
	}

	feeRate := decimal.NewFromFloat(0.01)
	if cfg.FeeRate != "" {
		feeRate, err = decimal.NewFromString(cfg.FeeRate)
		if err != nil {
			return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, fmt.Errorf("policy: invalid fee_rate %q: %w", cfg.FeeRate, err)
		}
	}
	feePolicy, err := NewFeePolicy(feeRate)
	if err != nil {
		return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, err
	}

	safetyShare := decimal.NewFromFloat(0.5)
	if cfg.SafetyShare != "" {
		safetyShare, err = decimal.NewFromString(cfg.SafetyShare)
		if err != nil {
			return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, fmt.Errorf("policy: invalid safety_share %q: %w", cfg.SafetyShare, err)
		}
	}
	splitPolicy, err := NewSplitPolicy(safetyShare)
	if err != nil {
		return FeePolicy{}, SplitPolicy{}, VaultRegistry{}, err
	}

	vaults := DefaultVaultRegistry()
	if cfg.SafetyVault != "" {
		vaults.SafetyVault = cfg.SafetyVault
	}
	if cfg.GrowthVault != "" {
		vaults.GrowthVault = cfg.GrowthVault
	}

	return feePolicy, splitPolicy, vaults, nil
}
