package auth

import (
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondvault/crypto"
)

// SigningDomainV1 tags the canonical domain message so signatures cannot be
// replayed against a different scheme version.
const SigningDomainV1 = "BONDVAULT_AUTH_V1"

// Domain binds every signed message to one deployment of the protocol on one
// chain. It is derived once at process start and immutable afterwards.
type Domain struct {
	Name       string
	Version    string
	ChainID    uint64
	Deployment crypto.Address

	separator [32]byte
}

// NewDomain derives the domain separator for the deployment. The canonical
// message layout is stable: changing any field yields a different separator
// and therefore invalidates all signatures minted for other deployments.
func NewDomain(name, version string, chainID uint64, deployment crypto.Address) (*Domain, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, fmt.Errorf("signing domain: name required")
	}
	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		return nil, fmt.Errorf("signing domain: version required")
	}
	if deployment.IsZero() {
		return nil, fmt.Errorf("signing domain: deployment address required")
	}

	builder := strings.Builder{}
	builder.WriteString(SigningDomainV1)
	builder.WriteString("|name=")
	builder.WriteString(trimmedName)
	builder.WriteString("|version=")
	builder.WriteString(trimmedVersion)
	builder.WriteString("|chain=")
	builder.WriteString(fmt.Sprintf("%d", chainID))
	builder.WriteString("|deployment=")
	builder.WriteString(deployment.String())

	d := &Domain{
		Name:       trimmedName,
		Version:    trimmedVersion,
		ChainID:    chainID,
		Deployment: deployment,
	}
	copy(d.separator[:], ethcrypto.Keccak256([]byte(builder.String())))
	return d, nil
}

// Separator returns the 32-byte domain separator hash.
func (d *Domain) Separator() [32]byte {
	return d.separator
}

// Digest folds a struct hash into the domain, producing the 32-byte message
// that is actually signed. The 0x19 0x01 prefix keeps the digest disjoint
// from raw transaction payloads.
func (d *Domain) Digest(structHash [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte{0x19, 0x01}, d.separator[:], structHash[:]))
	return out
}
