// Package consenttransition defines the consent state-transition predicate
// as a gnark circuit over BN254. A valid witness proves, without revealing
// the identity secret or the consent content, that:
//
//   - the nullifier and the new commitment are correctly derived from the
//     identity secret,
//   - the old consent record is a leaf of the accumulator whose root is the
//     public claimed root (skipped on a first-ever transition, where the
//     claimed root is the zero sentinel),
//   - consent is not downgraded, and
//   - the new record falls inside the freshness window.
//
// The membership check matches the server-side arbo tree: leaves are
// H(key, value, 1) and internal nodes H(left, right), with the leaf index
// bits selecting the path, which is what the circomlib-compatible smt
// verifier enforces.
package consenttransition

import (
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/gnark-crypto-primitives/hash/native/bn254/poseidon"
	"github.com/vocdoni/gnark-crypto-primitives/tree/smt"

	"github.com/vocdoni/consent-z-sandbox/types"
)

// HashFn is the in-circuit hash, the same poseidon permutation used by the
// accumulator tree and the off-circuit digests.
var HashFn = poseidon.Hash

// Circuit is the consent transition predicate. The public signals appear in
// the canonical wire order: currentTime, domainSalt, newCommitment,
// nullifier, root.
type Circuit struct {
	// ---------------------------------------------------------------------
	// PUBLIC INPUTS

	CurrentTime   frontend.Variable `gnark:",public"`
	DomainSalt    frontend.Variable `gnark:",public"`
	NewCommitment frontend.Variable `gnark:",public"`
	Nullifier     frontend.Variable `gnark:",public"`
	Root          frontend.Variable `gnark:",public"`

	// ---------------------------------------------------------------------
	// SECRET INPUTS

	IdentitySecret frontend.Variable
	OldConsentBits frontend.Variable
	NewConsentBits frontend.Variable
	OldTimestamp   frontend.Variable
	NewTimestamp   frontend.Variable
	// LeafIndex is the accumulator insertion index of the old commitment;
	// its bits are the path directions of the membership proof.
	LeafIndex frontend.Variable
	Siblings  [types.ConsentTreeMaxLevels]frontend.Variable
}

// Define declares the predicate constraints.
func (circuit Circuit) Define(api frontend.API) error {
	// range-check both consent bitfields to 8 bits
	api.ToBinary(circuit.OldConsentBits, 8)
	api.ToBinary(circuit.NewConsentBits, 8)

	if err := circuit.verifyNullifier(api); err != nil {
		return err
	}
	if err := circuit.verifyNewCommitment(api); err != nil {
		return err
	}
	circuit.verifyMonotonicity(api)
	circuit.verifyFreshness(api)
	return circuit.verifyMembership(api)
}

// verifyNullifier asserts nullifier == H(identitySecret, domainSalt).
func (circuit Circuit) verifyNullifier(api frontend.API) error {
	nullifier, err := HashFn(api, circuit.IdentitySecret, circuit.DomainSalt)
	if err != nil {
		return err
	}
	api.AssertIsEqual(circuit.Nullifier, nullifier)
	return nil
}

// verifyNewCommitment asserts
// newCommitment == H(newConsentBits, newTimestamp, identitySecret).
func (circuit Circuit) verifyNewCommitment(api frontend.API) error {
	commitment, err := HashFn(api, circuit.NewConsentBits, circuit.NewTimestamp, circuit.IdentitySecret)
	if err != nil {
		return err
	}
	api.AssertIsEqual(circuit.NewCommitment, commitment)
	return nil
}

// verifyMonotonicity asserts newConsentBits >= oldConsentBits as unsigned
// 8-bit integers. Note this is a numeric comparison, not a bitwise-superset
// test: a transition may numerically grow the field while clearing lower
// category bits. The comparison is part of the public protocol, so it is
// kept as specified.
func (circuit Circuit) verifyMonotonicity(api frontend.API) {
	api.AssertIsLessOrEqual(circuit.OldConsentBits, circuit.NewConsentBits)
}

// verifyFreshness asserts newTimestamp <= currentTime (no underflow) and
// currentTime - newTimestamp <= MaxConsentAge.
func (circuit Circuit) verifyFreshness(api frontend.API) {
	api.AssertIsLessOrEqual(circuit.NewTimestamp, circuit.CurrentTime)
	age := api.Sub(circuit.CurrentTime, circuit.NewTimestamp)
	api.AssertIsLessOrEqual(age, types.MaxConsentAge)
}

// verifyMembership asserts that H(oldConsentBits, oldTimestamp,
// identitySecret) is the accumulator leaf at LeafIndex under the public
// root. When the root is the zero sentinel (first-ever transition) the smt
// verifier is disabled and the old record is constrained to be empty
// instead.
func (circuit Circuit) verifyMembership(api frontend.API) error {
	isFirst := api.IsZero(circuit.Root)
	enabled := api.Sub(1, isFirst)

	// a first transition starts from the empty record
	api.AssertIsEqual(api.Mul(isFirst, circuit.OldConsentBits), 0)
	api.AssertIsEqual(api.Mul(isFirst, circuit.OldTimestamp), 0)

	oldCommitment, err := HashFn(api, circuit.OldConsentBits, circuit.OldTimestamp, circuit.IdentitySecret)
	if err != nil {
		return err
	}
	leafHash := smt.Hash1(api, HashFn, circuit.LeafIndex, oldCommitment)
	smt.VerifierWithLeafHash(api, HashFn,
		enabled,
		circuit.Root,
		circuit.Siblings[:],
		circuit.LeafIndex,
		leafHash,
		0,
		circuit.LeafIndex,
		leafHash,
		0, // inclusion
	)
	return nil
}
