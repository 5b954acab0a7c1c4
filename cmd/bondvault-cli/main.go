package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"bondvault/crypto"
	"bondvault/merkle"
	"bondvault/native/auth"
	"bondvault/native/vault"
)

const passphraseEnv = "BONDVAULT_PASSPHRASE"

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		if len(args) < 2 {
			fmt.Println("Usage: generate-key <keyfile>")
			return
		}
		generateKey(args[1])
	case "show-address":
		if len(args) < 2 {
			fmt.Println("Usage: show-address <keyfile>")
			return
		}
		showAddress(args[1])
	case "catalog-root":
		if len(args) < 2 {
			fmt.Println("Usage: catalog-root <terms.json>")
			return
		}
		catalogRoot(args[1])
	case "sign-vault":
		if len(args) < 8 {
			fmt.Println("Usage: sign-vault <keyfile> <catalogDigest> <expiration> <nonce> <deadline> <chainID> <deployment>")
			return
		}
		signVault(args[1], args[2:])
	case "sign-approval":
		if len(args) < 8 {
			fmt.Println("Usage: sign-approval <keyfile> <spender> <approved> <nonce> <deadline> <chainID> <deployment>")
			return
		}
		signApproval(args[1], args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func passphrase() string {
	pass := os.Getenv(passphraseEnv)
	if pass == "" {
		fatal(fmt.Errorf("set %s to protect the keystore", passphraseEnv))
	}
	return pass
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func generateKey(path string) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fatal(err)
	}
	if err := crypto.SaveKey(path, key, passphrase()); err != nil {
		fatal(err)
	}
	fmt.Println("Key saved to", path)
	fmt.Println("Address:", key.PubKey().Address())
}

func showAddress(path string) {
	key, err := crypto.LoadKey(path, passphrase())
	if err != nil {
		fatal(err)
	}
	fmt.Println(key.PubKey().Address())
}

// catalogTerm is the on-disk shape of one catalog entry; amounts are decimal
// strings so appraisers can describe values beyond int64.
type catalogTerm struct {
	CollateralID string `json:"collateralId"`
	MaxAmount    string `json:"maxAmount"`
	InterestRate string `json:"interestRate"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	LienPosition uint64 `json:"lienPosition"`
	Schedule     string `json:"schedule"`
}

func (c catalogTerm) terms() (vault.LoanTerms, error) {
	var terms vault.LoanTerms
	collateral, err := parseDigest(c.CollateralID)
	if err != nil {
		return terms, fmt.Errorf("collateralId: %w", err)
	}
	maxAmount, ok := new(big.Int).SetString(c.MaxAmount, 10)
	if !ok {
		return terms, fmt.Errorf("invalid maxAmount %q", c.MaxAmount)
	}
	rate, ok := new(big.Int).SetString(c.InterestRate, 10)
	if !ok {
		return terms, fmt.Errorf("invalid interestRate %q", c.InterestRate)
	}
	schedule, ok := new(big.Int).SetString(c.Schedule, 10)
	if !ok {
		return terms, fmt.Errorf("invalid schedule %q", c.Schedule)
	}
	terms = vault.LoanTerms{
		CollateralID: collateral,
		MaxAmount:    maxAmount,
		InterestRate: rate,
		Start:        c.Start,
		End:          c.End,
		LienPosition: c.LienPosition,
		Schedule:     schedule,
	}
	return terms, nil
}

func catalogRoot(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	var entries []catalogTerm
	if err := json.Unmarshal(raw, &entries); err != nil {
		fatal(fmt.Errorf("parse %s: %w", path, err))
	}
	leaves := make([][merkle.HashSize]byte, len(entries))
	for i, entry := range entries {
		terms, err := entry.terms()
		if err != nil {
			fatal(fmt.Errorf("term %d: %w", i, err))
		}
		leaves[i] = terms.LeafHash()
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		fatal(err)
	}
	root := tree.Root()
	fmt.Println("Catalog digest:", hex.EncodeToString(root[:]))
	for i := range leaves {
		proof, err := tree.Proof(i)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Proof %d:", i)
		for _, sibling := range proof {
			fmt.Printf(" %s", hex.EncodeToString(sibling))
		}
		fmt.Println()
	}
}

func signVault(keyPath string, args []string) {
	digest, err := parseDigest(args[0])
	if err != nil {
		fatal(fmt.Errorf("catalogDigest: %w", err))
	}
	expiration, nonce, deadline, domain, err := parseSigningArgs(args[1:])
	if err != nil {
		fatal(err)
	}
	key, err := crypto.LoadKey(keyPath, passphrase())
	if err != nil {
		fatal(err)
	}
	appraiser := key.PubKey().Address()
	structHash := auth.VaultCreationHash(appraiser, digest, expiration, nonce, deadline)
	signDigest(key, domain, structHash)
}

func signApproval(keyPath string, args []string) {
	spender, err := crypto.DecodeAddress(args[0])
	if err != nil {
		fatal(fmt.Errorf("spender: %w", err))
	}
	approved, err := strconv.ParseBool(args[1])
	if err != nil {
		fatal(fmt.Errorf("approved: %w", err))
	}
	nonce, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("nonce: %w", err))
	}
	deadline, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("deadline: %w", err))
	}
	domain, err := parseDomainArgs(args[4], args[5])
	if err != nil {
		fatal(err)
	}
	key, err := crypto.LoadKey(keyPath, passphrase())
	if err != nil {
		fatal(err)
	}
	owner := key.PubKey().Address()
	structHash := auth.OperatorApprovalHash(owner, spender, approved, nonce, deadline)
	signDigest(key, domain, structHash)
}

func parseSigningArgs(args []string) (expiration int64, nonce uint64, deadline int64, domain *auth.Domain, err error) {
	if expiration, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("expiration: %w", err)
	}
	if nonce, err = strconv.ParseUint(args[1], 10, 64); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("nonce: %w", err)
	}
	if deadline, err = strconv.ParseInt(args[2], 10, 64); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("deadline: %w", err)
	}
	domain, err = parseDomainArgs(args[3], args[4])
	return expiration, nonce, deadline, domain, err
}

func parseDomainArgs(chainArg, deploymentArg string) (*auth.Domain, error) {
	chainID, err := strconv.ParseUint(chainArg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("chainID: %w", err)
	}
	deployment, err := crypto.DecodeAddress(deploymentArg)
	if err != nil {
		return nil, fmt.Errorf("deployment: %w", err)
	}
	return auth.NewDomain("bondvault", "1", chainID, deployment)
}

func signDigest(key *crypto.PrivateKey, domain *auth.Domain, structHash [32]byte) {
	digest := domain.Digest(structHash)
	sig, err := key.Sign(digest[:])
	if err != nil {
		fatal(err)
	}
	fmt.Println(hex.EncodeToString(sig))
}

func parseDigest(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func printUsage() {
	fmt.Println("Usage: bondvault-cli <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key <keyfile>                     Create a new key and save it encrypted")
	fmt.Println("  show-address <keyfile>                     Print the bech32 address of a key")
	fmt.Println("  catalog-root <terms.json>                  Build a catalog tree and print root + proofs")
	fmt.Println("  sign-vault <keyfile> <digest> <expiration> <nonce> <deadline> <chainID> <deployment>")
	fmt.Println("  sign-approval <keyfile> <spender> <approved> <nonce> <deadline> <chainID> <deployment>")
	fmt.Println()
	fmt.Printf("Keystore passphrase is read from %s.\n", passphraseEnv)
}
