// Package merkle implements the sorted-pair keccak256 merkle tree used to
// commit to a vault's approved loan-term catalog. A catalog digest is the
// root of a tree whose leaves hash individual term tuples; an inclusion
// proof is the ordered list of sibling hashes from the leaf to the root.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HashSize is the byte length of every node hash in the tree.
const HashSize = 32

var (
	// ErrMalformedProof indicates a sibling entry that is not HashSize bytes.
	ErrMalformedProof = errors.New("merkle: malformed proof")
	// ErrProofMismatch indicates the proof does not reconstruct the root.
	ErrProofMismatch = errors.New("merkle: proof does not match root")
	// ErrNoLeaves indicates an attempt to build a tree without leaves.
	ErrNoLeaves = errors.New("merkle: tree requires at least one leaf")
	// ErrLeafOutOfRange indicates a proof request for a non-existent leaf.
	ErrLeafOutOfRange = errors.New("merkle: leaf index out of range")
)

// combine hashes an ordered pair of nodes. The pair is sorted byte-wise
// before hashing so the verifier needs no per-step position flags; the
// combine rule is commutative and deterministic.
func combine(a, b [HashSize]byte) [HashSize]byte {
	var out [HashSize]byte
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	return out
}

// Verify recomputes the root from leaf and the ordered sibling list and
// rejects the proof unless the result equals root. Every sibling must be
// exactly HashSize bytes.
func Verify(root, leaf [HashSize]byte, siblings [][]byte) error {
	running := leaf
	for i, sib := range siblings {
		if len(sib) != HashSize {
			return fmt.Errorf("%w: sibling %d is %d bytes", ErrMalformedProof, i, len(sib))
		}
		var node [HashSize]byte
		copy(node[:], sib)
		running = combine(running, node)
	}
	if running != root {
		return ErrProofMismatch
	}
	return nil
}

// Tree is a fixed merkle tree over a catalog of leaf hashes. Odd-length
// levels promote the trailing node unchanged.
type Tree struct {
	levels [][][HashSize]byte
}

// NewTree builds the tree bottom-up from the supplied leaf hashes.
func NewTree(leaves [][HashSize]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	level := make([][HashSize]byte, len(leaves))
	copy(level, leaves)

	t := &Tree{levels: [][][HashSize]byte{level}}
	for len(level) > 1 {
		next := make([][HashSize]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// Root returns the catalog digest committing to every leaf.
func (t *Tree) Root() [HashSize]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the ordered sibling list for the leaf at index. A promoted
// trailing node contributes no sibling at that level.
func (t *Tree) Proof(index int) ([][]byte, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, ErrLeafOutOfRange
	}
	var proof [][]byte
	pos := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			sib := level[sibling]
			proof = append(proof, append([]byte(nil), sib[:]...))
		}
		pos /= 2
	}
	return proof, nil
}
