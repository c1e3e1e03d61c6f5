package testutil

import (
	"wipe-go/internal/vault"
)

// NewTestVault creates an empty in-memory certificate vault.
func NewTestVault(name string) *vault.MemoryVault {
	return vault.NewMemoryVault(name)
}
