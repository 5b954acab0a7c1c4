package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondvault/crypto"
	"bondvault/native/auth"
)

// Record keys are keccak hashes over a typed prefix and the record's natural
// identifiers, keeping the key space uniform regardless of backend.
var (
	vaultPrefix      = []byte("vault:")
	loanIndexPrefix  = []byte("loan-index:")
	loanRecordPrefix = []byte("loan:")
	loanSeqKey       = ethcrypto.Keccak256([]byte("loan-seq"))
	noncePrefix      = []byte("nonce:")
	balancePrefix    = []byte("balance:")
	sharePrefix      = []byte("share:")
	delegationPrefix = []byte("delegation:")
	collateralPrefix = []byte("collateral:")
)

func hashKey(parts ...[]byte) []byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func vaultKey(digest [32]byte) []byte {
	return hashKey(vaultPrefix, digest[:])
}

func loanIndexKey(digest [32]byte, borrower crypto.Address) []byte {
	return hashKey(loanIndexPrefix, digest[:], borrower.Bytes())
}

func loanRecordKey(seq uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], seq)
	return hashKey(loanRecordPrefix, raw[:])
}

func nonceKey(signer crypto.Address, purpose auth.Purpose) []byte {
	return hashKey(noncePrefix, []byte(purpose), []byte(":"), signer.Bytes())
}

func balanceKey(addr crypto.Address) []byte {
	return hashKey(balancePrefix, addr.Bytes())
}

func shareKey(class [32]byte, addr crypto.Address) []byte {
	return hashKey(sharePrefix, class[:], addr.Bytes())
}

func delegationKey(owner, spender crypto.Address) []byte {
	return hashKey(delegationPrefix, owner.Bytes(), []byte(":"), spender.Bytes())
}

func collateralKey(id [32]byte) []byte {
	return hashKey(collateralPrefix, id[:])
}
