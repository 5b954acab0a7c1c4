package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bondvault/crypto"
	"bondvault/native/auth"
	"bondvault/native/token"
	"bondvault/native/vault"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
	return status
}

func writeJSONError(w http.ResponseWriter, status int, message string) int {
	return writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps the engine's taxonomy onto HTTP statuses. Every
// rejected operation left state untouched, so the mapping is purely
// informational for the caller.
func writeEngineError(w http.ResponseWriter, err error) int {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrZeroSigner),
		errors.Is(err, auth.ErrDeadlineExpired),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrSignerMismatch):
		status = http.StatusUnauthorized
	case errors.Is(err, vault.ErrVaultNotFound),
		errors.Is(err, vault.ErrLoanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrVaultExists),
		errors.Is(err, vault.ErrVaultExpired),
		errors.Is(err, vault.ErrLoanLiquidated),
		errors.Is(err, vault.ErrNotLiquidatable):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrCollateralOwnership),
		errors.Is(err, vault.ErrNotDelegated):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrProofRejected):
		status = http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrAmountAboveMax),
		errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrRepayExceedsDebt),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInvalidAmount):
		status = http.StatusUnprocessableEntity
	}
	return writeJSONError(w, status, err.Error())
}

func decodeBody(r *http.Request, into interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseDigest(value string) ([32]byte, error) {
	var digest [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return digest, fmt.Errorf("invalid digest %q: %w", value, err)
	}
	if len(raw) != 32 {
		return digest, fmt.Errorf("digest must be 32 bytes, got %d", len(raw))
	}
	copy(digest[:], raw)
	return digest, nil
}

func parseAddress(value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid address %q: %w", value, err)
	}
	return addr, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func parseSignature(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	return sig, nil
}

func parseProof(values []string) ([][]byte, error) {
	proof := make([][]byte, len(values))
	for i, value := range values {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid proof element %d: %w", i, err)
		}
		proof[i] = raw
	}
	return proof, nil
}

// --- Wire representations ---

type vaultResponse struct {
	CatalogDigest string `json:"catalogDigest"`
	Appraiser     string `json:"appraiser"`
	TotalSupply   string `json:"totalSupply"`
	Balance       string `json:"balance"`
	Expiration    int64  `json:"expiration"`
}

func newVaultResponse(digest [32]byte, v *vault.Vault) vaultResponse {
	return vaultResponse{
		CatalogDigest: hex.EncodeToString(digest[:]),
		Appraiser:     v.Appraiser.String(),
		TotalSupply:   v.TotalSupply.String(),
		Balance:       v.Balance.String(),
		Expiration:    v.Expiration,
	}
}

type loanResponse struct {
	Index        uint64 `json:"index"`
	CollateralID string `json:"collateralId"`
	Amount       string `json:"amount"`
	InterestRate string `json:"interestRate"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	LienPosition uint64 `json:"lienPosition"`
	Schedule     string `json:"schedule"`
	Liquidated   bool   `json:"liquidated"`
}

func newLoanResponse(index uint64, loan *vault.Loan) loanResponse {
	return loanResponse{
		Index:        index,
		CollateralID: hex.EncodeToString(loan.CollateralID[:]),
		Amount:       loan.Amount.String(),
		InterestRate: loan.InterestRate.String(),
		Start:        loan.Start,
		End:          loan.End,
		LienPosition: loan.LienPosition,
		Schedule:     loan.Schedule.String(),
		Liquidated:   loan.Liquidated,
	}
}

type loanTermsRequest struct {
	CollateralID string `json:"collateralId"`
	MaxAmount    string `json:"maxAmount"`
	InterestRate string `json:"interestRate"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	LienPosition uint64 `json:"lienPosition"`
	Schedule     string `json:"schedule"`
}

func (req loanTermsRequest) terms() (vault.LoanTerms, error) {
	var terms vault.LoanTerms
	collateral, err := parseDigest(req.CollateralID)
	if err != nil {
		return terms, err
	}
	maxAmount, err := parseAmount(req.MaxAmount)
	if err != nil {
		return terms, err
	}
	interestRate, err := parseAmount(req.InterestRate)
	if err != nil {
		return terms, err
	}
	schedule, err := parseAmount(req.Schedule)
	if err != nil {
		return terms, err
	}
	terms = vault.LoanTerms{
		CollateralID: collateral,
		MaxAmount:    maxAmount,
		InterestRate: interestRate,
		Start:        req.Start,
		End:          req.End,
		LienPosition: req.LienPosition,
		Schedule:     schedule,
	}
	return terms, nil
}
