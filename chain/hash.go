// Package chain provides the content hashing and block linking primitives of
// the ledger. Everything here is pure: the same inputs always produce the
// same digest, so any block or payload can be re-verified from stored state.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// GenesisPreviousHash is the previous-hash sentinel of block 0.
	GenesisPreviousHash = "0"

	// GenesisMerkleRoot marks the genesis block, which carries no transactions.
	GenesisMerkleRoot = "genesis"

	// EmptyMerkleRoot marks a block whose transaction list is empty.
	EmptyMerkleRoot = "empty"

	// TimestampLayout is the fixed-width UTC format of every stored timestamp.
	// All nine fractional digits are kept, so lexicographic order of the
	// stored strings is chronological order.
	TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Hash returns the hex-encoded SHA-256 digest of the canonical JSON form of v.
// Canonical means stable key ordering, so semantically identical structures
// always hash identically.
func Hash(v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashStrings hashes the concatenation of the given parts.
func HashStrings(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// MerkleRoot summarizes the ordered transaction hashes of a block. The chain
// holds exactly one transaction per block, so this is a flat hash of the
// list rather than a tree.
func MerkleRoot(txHashes []string) string {
	if len(txHashes) == 0 {
		return EmptyMerkleRoot
	}
	return HashStrings(txHashes...)
}

// LinkBlock computes a block's hash from its number, the previous block's
// hash, its merkle root and its stored timestamp.
func LinkBlock(blockNumber uint64, previousHash, merkleRoot, timestamp string) string {
	return HashStrings(strconv.FormatUint(blockNumber, 10), previousHash, merkleRoot, timestamp)
}

// CanonicalJSON serializes v with deterministic key ordering. The value is
// round-tripped through an untyped form so struct field order never leaks
// into the digest.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var untyped any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return nil, err
	}

	return json.Marshal(untyped)
}
