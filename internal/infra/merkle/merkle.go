// Package merkle computes RFC 6962-style merkle roots and inclusion
// proofs over ledger entry hashes. Leaves are the 32-byte entry hashes
// themselves; interior nodes are SHA256(0x01 || left || right).
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
)

const HashSize = sha256.Size

var (
	ErrEmptyTree      = errors.New("empty merkle tree")
	ErrInvalidHashLen = errors.New("invalid hash length")
	ErrInvalidIndex   = errors.New("invalid leaf index")
)

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// split returns the largest power of two strictly less than n.
func split(n int) int {
	k := 1
	for k<<1 < n {
		k <<= 1
	}
	return k
}

func Root(leaves [][]byte) ([]byte, error) {
	if err := validate(leaves); err != nil {
		return nil, err
	}
	return root(leaves), nil
}

func root(leaves [][]byte) []byte {
	if len(leaves) == 1 {
		return leaves[0]
	}
	k := split(len(leaves))
	return nodeHash(root(leaves[:k]), root(leaves[k:]))
}

// Proof returns the audit path for the leaf at index, sibling closest
// to the leaf first.
func Proof(leaves [][]byte, index int) ([][]byte, error) {
	if err := validate(leaves); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(leaves) {
		return nil, ErrInvalidIndex
	}
	return proof(leaves, index), nil
}

func proof(leaves [][]byte, index int) [][]byte {
	if len(leaves) == 1 {
		return nil
	}
	k := split(len(leaves))
	if index < k {
		return append(proof(leaves[:k], index), root(leaves[k:]))
	}
	return append(proof(leaves[k:], index-k), root(leaves[:k]))
}

// Verify recomputes the root from a leaf hash and its audit path.
func Verify(leaf []byte, index, size int, path [][]byte, expectedRoot []byte) bool {
	if size <= 0 || index < 0 || index >= size {
		return false
	}
	if len(leaf) != HashSize || len(expectedRoot) != HashSize {
		return false
	}
	for _, sibling := range path {
		if len(sibling) != HashSize {
			return false
		}
	}

	fn, sn := index, size-1
	hash := leaf
	for _, sibling := range path {
		if sn == 0 {
			return false
		}
		if fn%2 == 1 || fn == sn {
			hash = nodeHash(sibling, hash)
			for fn%2 == 0 && fn != 0 {
				fn >>= 1
				sn >>= 1
			}
		} else {
			hash = nodeHash(hash, sibling)
		}
		fn >>= 1
		sn >>= 1
	}
	if sn != 0 {
		return false
	}
	return bytes.Equal(hash, expectedRoot)
}

func validate(leaves [][]byte) error {
	if len(leaves) == 0 {
		return ErrEmptyTree
	}
	for _, leaf := range leaves {
		if len(leaf) != HashSize {
			return ErrInvalidHashLen
		}
	}
	return nil
}
