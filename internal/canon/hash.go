package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for derived identities.
// The version suffix leaves room for an algorithm migration.
const (
	DomainVault = "ephvault/vault/v1"
	DomainEvent = "ephvault/event/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null separator keeps domain and data boundaries unambiguous.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeIdentity returns the NFC form of an identity string so that
// visually identical identities derive the same address.
func NormalizeIdentity(id string) string {
	return norm.NFC.String(id)
}

// VaultAddress derives the storage address of the vault owned by user.
// The result depends on nothing but the normalized user identity.
func VaultAddress(user string) string {
	return HashWithDomain(DomainVault, []byte(NormalizeIdentity(user)))
}

// ContentID hashes the canonical form of obj under domain.
func ContentID(domain string, obj map[string]any) (string, error) {
	data, err := Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("content id: %w", err)
	}
	return HashWithDomain(domain, data), nil
}
