package testutil

import (
	"wipe-go/internal/encryption"
	"wipe-go/internal/wipe"
)

// NewTestEncryptor creates a reversible, keyless encryptor for tests.
func NewTestEncryptor() wipe.Encryptor {
	return encryption.NewTestEncryptor()
}

// UnlockTestEncryptor returns a decryption context for documents written by
// NewTestEncryptor.
func UnlockTestEncryptor() wipe.DecryptionContext {
	dc, _ := encryption.NewTestEncryptor().Unlock("")
	return dc
}
