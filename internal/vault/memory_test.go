package vault_test

import (
	"testing"

	"github.com/roach88/ephvault/internal/vault"
	"github.com/roach88/ephvault/internal/vault/vaulttest"
)

func TestMemoryBackend(t *testing.T) {
	vaulttest.RunBackendSuite(t, func(*testing.T) vault.Backend {
		return vault.NewMemoryBackend()
	})
}
