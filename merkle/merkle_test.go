package merkle

import (
	"errors"
	"fmt"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func leafHash(i int) [HashSize]byte {
	var out [HashSize]byte
	copy(out[:], ethcrypto.Keccak256([]byte(fmt.Sprintf("leaf-%d", i))))
	return out
}

func buildLeaves(n int) [][HashSize]byte {
	leaves := make([][HashSize]byte, n)
	for i := range leaves {
		leaves[i] = leafHash(i)
	}
	return leaves
}

func TestProofRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		tree, err := NewTree(buildLeaves(n))
		if err != nil {
			t.Fatalf("build tree of %d leaves: %v", n, err)
		}
		root := tree.Root()
		for i := 0; i < n; i++ {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("proof for leaf %d of %d: %v", i, n, err)
			}
			if err := Verify(root, leafHash(i), proof); err != nil {
				t.Fatalf("verify leaf %d of %d: %v", i, n, err)
			}
		}
	}
}

func TestProofRejectsWrongRoot(t *testing.T) {
	tree, err := NewTree(buildLeaves(4))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	other, err := NewTree(buildLeaves(5))
	if err != nil {
		t.Fatalf("build other tree: %v", err)
	}
	proof, err := tree.Proof(2)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if err := Verify(other.Root(), leafHash(2), proof); !errors.Is(err, ErrProofMismatch) {
		t.Fatalf("expected mismatch against foreign root, got %v", err)
	}
}

func TestProofRejectsMutatedLeaf(t *testing.T) {
	tree, err := NewTree(buildLeaves(6))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	mutated := leafHash(1)
	mutated[0] ^= 0xff
	if err := Verify(tree.Root(), mutated, proof); !errors.Is(err, ErrProofMismatch) {
		t.Fatalf("expected mismatch for mutated leaf, got %v", err)
	}
}

func TestVerifyRejectsMalformedSibling(t *testing.T) {
	tree, err := NewTree(buildLeaves(4))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	proof[0] = proof[0][:16]
	if err := Verify(tree.Root(), leafHash(0), proof); !errors.Is(err, ErrMalformedProof) {
		t.Fatalf("expected malformed proof error, got %v", err)
	}
}

func TestSingleLeafTree(t *testing.T) {
	tree, err := NewTree(buildLeaves(1))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if tree.Root() != leafHash(0) {
		t.Fatalf("single-leaf root must equal the leaf hash")
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if len(proof) != 0 {
		t.Fatalf("single-leaf proof must be empty, got %d siblings", len(proof))
	}
}

func TestProofLeafOutOfRange(t *testing.T) {
	tree, err := NewTree(buildLeaves(3))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if _, err := tree.Proof(3); !errors.Is(err, ErrLeafOutOfRange) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	if _, err := tree.Proof(-1); !errors.Is(err, ErrLeafOutOfRange) {
		t.Fatalf("expected out of range error for negative index, got %v", err)
	}
}
