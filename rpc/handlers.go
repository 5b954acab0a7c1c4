package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type createVaultRequest struct {
	Appraiser     string `json:"appraiser"`
	CatalogDigest string `json:"catalogDigest"`
	Expiration    int64  `json:"expiration"`
	Deadline      int64  `json:"deadline"`
	Signature     string `json:"signature"`
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) int {
	var req createVaultRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	appraiser, err := parseAddress(req.Appraiser)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	digest, err := parseDigest(req.CatalogDigest)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.CreateVault(appraiser, digest, req.Expiration, req.Deadline, sig); err != nil {
		return writeEngineError(w, err)
	}
	v, err := s.engine.Vault(digest)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusCreated, newVaultResponse(digest, v))
}

type approveOperatorRequest struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Approved  bool   `json:"approved"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

func (s *Server) handleApproveOperator(w http.ResponseWriter, r *http.Request) int {
	var req approveOperatorRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	spender, err := parseAddress(req.Spender)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.approvals.Approve(owner, spender, req.Approved, req.Deadline, sig); err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"approved": req.Approved})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) int {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	balance, err := s.ledger.ReserveBalance(addr)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"balance": balance.String(),
	})
}

func (s *Server) handleGetShares(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	shares, err := s.ledger.BalanceOf(addr, digest)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"shares":  shares.String(),
	})
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	v, err := s.engine.Vault(digest)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, newVaultResponse(digest, v))
}

type lendRequest struct {
	Lender string `json:"lender"`
	Amount string `json:"amount"`
}

func (s *Server) handleLend(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	var req lendRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	lender, err := parseAddress(req.Lender)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.Lend(lender, digest, amount); err != nil {
		return writeEngineError(w, err)
	}
	v, err := s.engine.Vault(digest)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, newVaultResponse(digest, v))
}

type redeemRequest struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	owner := caller
	if req.Owner != "" {
		if owner, err = parseAddress(req.Owner); err != nil {
			return writeJSONError(w, http.StatusBadRequest, err.Error())
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.Redeem(caller, owner, digest, amount); err != nil {
		return writeEngineError(w, err)
	}
	v, err := s.engine.Vault(digest)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, newVaultResponse(digest, v))
}

type commitLoanRequest struct {
	Borrower string           `json:"borrower"`
	Amount   string           `json:"amount"`
	Terms    loanTermsRequest `json:"terms"`
	Proof    []string         `json:"proof"`
}

func (s *Server) handleCommitLoan(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	var req commitLoanRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	terms, err := req.Terms.terms()
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.CommitToLoan(borrower, digest, terms, amount, proof); err != nil {
		return writeEngineError(w, err)
	}
	loans, err := s.engine.Loans(digest, borrower)
	if err != nil {
		return writeEngineError(w, err)
	}
	index := uint64(len(loans) - 1)
	return writeJSON(w, http.StatusCreated, newLoanResponse(index, loans[index]))
}

func (s *Server) handleGetLoans(w http.ResponseWriter, r *http.Request) int {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	borrower, err := parseAddress(chi.URLParam(r, "borrower"))
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	loans, err := s.engine.Loans(digest, borrower)
	if err != nil {
		return writeEngineError(w, err)
	}
	out := make([]loanResponse, len(loans))
	for i, loan := range loans {
		out[i] = newLoanResponse(uint64(i), loan)
	}
	return writeJSON(w, http.StatusOK, out)
}

type repayRequest struct {
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

func (s *Server) loanRef(w http.ResponseWriter, r *http.Request) ([32]byte, string, uint64, bool) {
	digest, err := parseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return digest, "", 0, false
	}
	borrower := chi.URLParam(r, "borrower")
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid loan index")
		return digest, "", 0, false
	}
	return digest, borrower, index, true
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) int {
	digest, borrowerRaw, index, ok := s.loanRef(w, r)
	if !ok {
		return http.StatusBadRequest
	}
	borrower, err := parseAddress(borrowerRaw)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	payer, err := parseAddress(req.Payer)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.Repay(payer, digest, borrower, index, amount); err != nil {
		return writeEngineError(w, err)
	}
	loans, err := s.engine.Loans(digest, borrower)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, newLoanResponse(index, loans[index]))
}

func (s *Server) handleLiquidatable(w http.ResponseWriter, r *http.Request) int {
	digest, borrowerRaw, index, ok := s.loanRef(w, r)
	if !ok {
		return http.StatusBadRequest
	}
	borrower, err := parseAddress(borrowerRaw)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	liquidatable, err := s.engine.IsLiquidatable(digest, borrower, index)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"liquidatable": liquidatable})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) int {
	digest, borrowerRaw, index, ok := s.loanRef(w, r)
	if !ok {
		return http.StatusBadRequest
	}
	borrower, err := parseAddress(borrowerRaw)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, err.Error())
	}
	if err := s.engine.Liquidate(digest, borrower, index); err != nil {
		return writeEngineError(w, err)
	}
	loans, err := s.engine.Loans(digest, borrower)
	if err != nil {
		return writeEngineError(w, err)
	}
	return writeJSON(w, http.StatusOK, newLoanResponse(index, loans[index]))
}
