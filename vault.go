package main

// VaultRegistry is an immutable pair of sink account identifiers used by
// the router as destinations for the two fee-split events. Vaults are
// ordinary ledger accounts; nothing structurally prevents other credits
// to them, but the router treats any credit it produces to these
// accounts as a fee split.
type VaultRegistry struct {
	SafetyVault string
	GrowthVault string
}

// DefaultVaultRegistry returns the conventional vault account ids.
func DefaultVaultRegistry() VaultRegistry {
	return VaultRegistry{
		SafetyVault: "vault:safety",
		GrowthVault: "vault:growth",
	}
}

// NewVaultRegistry builds a VaultRegistry from explicit account ids.
func NewVaultRegistry(safetyVault, growthVault string) VaultRegistry {
	return VaultRegistry{SafetyVault: safetyVault, GrowthVault: growthVault}
}
