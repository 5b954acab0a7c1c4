package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondvault/crypto"
)

// Purpose scopes a signer's nonce sequence. Each purpose advances its own
// counter, so consuming an operator-approval nonce never invalidates a
// pending vault-creation message.
type Purpose string

const (
	// PurposeOperatorApproval scopes signatures that toggle share delegation.
	PurposeOperatorApproval Purpose = "operator-approval"
	// PurposeVaultCreation scopes appraiser signatures that register vaults.
	PurposeVaultCreation Purpose = "vault-creation"
)

// OperatorApprovalHash builds the struct hash for an operator-approval
// message. The embedded nonce must be the signer's current (pre-increment)
// counter value for the operator-approval purpose.
func OperatorApprovalHash(owner, spender crypto.Address, approved bool, nonce uint64, deadline int64) [32]byte {
	builder := strings.Builder{}
	builder.WriteString("OPERATOR_APPROVAL")
	builder.WriteString("|owner=")
	builder.WriteString(owner.String())
	builder.WriteString("|spender=")
	builder.WriteString(spender.String())
	builder.WriteString("|approved=")
	builder.WriteString(fmt.Sprintf("%t", approved))
	builder.WriteString("|nonce=")
	builder.WriteString(fmt.Sprintf("%d", nonce))
	builder.WriteString("|deadline=")
	builder.WriteString(fmt.Sprintf("%d", deadline))

	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(builder.String())))
	return out
}

// VaultCreationHash builds the struct hash an appraiser signs to authorise a
// vault for the catalog digest.
func VaultCreationHash(appraiser crypto.Address, catalogDigest [32]byte, expiration int64, nonce uint64, deadline int64) [32]byte {
	builder := strings.Builder{}
	builder.WriteString("VAULT_CREATION")
	builder.WriteString("|appraiser=")
	builder.WriteString(appraiser.String())
	builder.WriteString("|catalog=")
	builder.WriteString(hex.EncodeToString(catalogDigest[:]))
	builder.WriteString("|expiration=")
	builder.WriteString(fmt.Sprintf("%d", expiration))
	builder.WriteString("|nonce=")
	builder.WriteString(fmt.Sprintf("%d", nonce))
	builder.WriteString("|deadline=")
	builder.WriteString(fmt.Sprintf("%d", deadline))

	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(builder.String())))
	return out
}
