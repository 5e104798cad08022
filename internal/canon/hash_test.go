package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainSeparation(t *testing.T) {
	a := HashWithDomain(DomainVault, []byte("alice"))
	b := HashWithDomain(DomainEvent, []byte("alice"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

func TestVaultAddressDeterministic(t *testing.T) {
	assert.Equal(t, VaultAddress("alice"), VaultAddress("alice"))
	assert.NotEqual(t, VaultAddress("alice"), VaultAddress("bob"))
}

func TestVaultAddressNormalizesIdentity(t *testing.T) {
	assert.Equal(t, VaultAddress("jos\u00e9"), VaultAddress("jose\u0301"))
}

func TestContentIDIgnoresKeyOrder(t *testing.T) {
	id1, err := ContentID(DomainEvent, map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	id2, err := ContentID(DomainEvent, map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	_, err = ContentID(DomainEvent, map[string]any{"f": 0.5})
	assert.Error(t, err)
}
