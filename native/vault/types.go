package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondvault/crypto"
)

// Vault is the accounting record for one bond vault. The catalog digest the
// vault is keyed by doubles as its share-class identifier. Amount values are
// denominated in reserve-asset units and expressed as big integers.
type Vault struct {
	// Appraiser is the address that authorised the catalog. A zero value
	// means the vault is uninitialised.
	Appraiser crypto.Address
	// TotalSupply is the cumulative reserve ever deposited, which equals the
	// cumulative shares minted.
	TotalSupply *big.Int
	// Balance is the reserve currently undeployed and available to borrow.
	Balance *big.Int
	// Expiration is the unix timestamp after which deposits and new loan
	// commitments are rejected.
	Expiration int64
}

// Clone returns a deep copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := &Vault{Appraiser: v.Appraiser, Expiration: v.Expiration}
	if v.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(v.TotalSupply)
	}
	if v.Balance != nil {
		clone.Balance = new(big.Int).Set(v.Balance)
	}
	return clone
}

// Loan records a single drawdown against posted collateral. Loans are owned
// by the vault's per-borrower list; Amount is the only field mutated after
// creation (repayment decrements it) and records are never removed, even at
// zero outstanding principal.
type Loan struct {
	// CollateralID is the opaque handle of the posted collateral asset.
	CollateralID [32]byte
	// Amount is the outstanding principal.
	Amount *big.Int
	// InterestRate is the per-second accrual factor.
	InterestRate *big.Int
	// Start and End bound the loan's validity window.
	Start int64
	End   int64
	// LienPosition is the loan's repayment priority among loans on the same
	// collateral. Recorded but not enforced by this core.
	LienPosition uint64
	// Schedule is the interest-to-principal ceiling ratio beyond which
	// liquidation is permitted.
	Schedule *big.Int
	// Liquidated marks the terminal hand-off to the external auction.
	Liquidated bool
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{
		CollateralID: l.CollateralID,
		Start:        l.Start,
		End:          l.End,
		LienPosition: l.LienPosition,
		Liquidated:   l.Liquidated,
	}
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	}
	if l.InterestRate != nil {
		clone.InterestRate = new(big.Int).Set(l.InterestRate)
	}
	if l.Schedule != nil {
		clone.Schedule = new(big.Int).Set(l.Schedule)
	}
	return clone
}

// LoanTerms is one permissible loan tuple from an appraiser's catalog. The
// catalog digest is the merkle root over the leaf hashes of every tuple.
type LoanTerms struct {
	CollateralID [32]byte
	MaxAmount    *big.Int
	InterestRate *big.Int
	Start        int64
	End          int64
	LienPosition uint64
	Schedule     *big.Int
}

// LeafHash renders the canonical leaf digest for the term tuple. Mutating
// any field yields a different leaf and therefore fails catalog inclusion.
func (t LoanTerms) LeafHash() [32]byte {
	builder := strings.Builder{}
	builder.WriteString("LOAN_TERMS")
	builder.WriteString("|collateral=")
	builder.WriteString(hex.EncodeToString(t.CollateralID[:]))
	builder.WriteString("|max=")
	builder.WriteString(bigString(t.MaxAmount))
	builder.WriteString("|rate=")
	builder.WriteString(bigString(t.InterestRate))
	builder.WriteString("|start=")
	builder.WriteString(fmt.Sprintf("%d", t.Start))
	builder.WriteString("|end=")
	builder.WriteString(fmt.Sprintf("%d", t.End))
	builder.WriteString("|lien=")
	builder.WriteString(fmt.Sprintf("%d", t.LienPosition))
	builder.WriteString("|schedule=")
	builder.WriteString(bigString(t.Schedule))

	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(builder.String())))
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
