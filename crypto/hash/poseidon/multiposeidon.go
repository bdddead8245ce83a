// Package poseidon wraps the iden3 poseidon implementation, the
// circuit-friendly hash primitive H used for consent commitments, nullifiers
// and the accumulator tree. The same permutation is enforced in-circuit, so
// every digest computed here can be re-derived inside the transition
// predicate.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MultiPoseidon hashes an arbitrary number of field elements by chunking
// them in groups of 16 (the maximum poseidon arity) and hashing the chunk
// digests together.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > 256 {
		return nil, fmt.Errorf("too many inputs")
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	// calculate chunk hashes
	hashes := []*big.Int{}
	chunk := []*big.Int{}
	for _, input := range inputs {
		if len(chunk) == 16 {
			hash, err := poseidon.Hash(chunk)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, hash)
			chunk = []*big.Int{}
		}
		chunk = append(chunk, input)
	}
	// if the final chunk is not empty, hash it to get the last chunk hash
	if len(chunk) > 0 {
		hash, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	// if there is only one chunk hash, return it
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	// return the hash of all chunk hashes
	return poseidon.Hash(hashes)
}

// ConsentCommitment derives the hiding, binding digest of a consent record
// tied to one identity: H(consentBits, timestamp, identitySecret). For
// three inputs MultiPoseidon reduces to a single poseidon permutation, the
// same one the transition predicate enforces.
func ConsentCommitment(consentBits, timestamp, identitySecret *big.Int) (*big.Int, error) {
	return MultiPoseidon(consentBits, timestamp, identitySecret)
}

// ConsentNullifier derives the per-identity, per-domain replay tag:
// H(identitySecret, domainSalt). It is independent of consent content and
// time, so a client may re-derive a fresh witness and resubmit without
// changing it.
func ConsentNullifier(identitySecret, domainSalt *big.Int) (*big.Int, error) {
	return MultiPoseidon(identitySecret, domainSalt)
}
