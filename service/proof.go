package service

import (
	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// Proof is a tagged consent submission. The verification service branches
// on the concrete variant, never on optional-field presence.
type Proof interface {
	// Assurance reports the guarantee level the variant can provide once
	// verified. It tags receipts and audit logs.
	Assurance() types.AssuranceLevel
}

// ZkProof is a groth16 proof of the full transition predicate together
// with its five public signals.
type ZkProof struct {
	Proof   types.HexBytes
	Signals *consenttransition.PublicSignals
}

// Assurance implements Proof.
func (ZkProof) Assurance() types.AssuranceLevel { return types.AssuranceZk }

// AttestedProof wraps a signed claim submitted when the client prover is
// unavailable. It proves only that someone holding the signing key vouched
// for the values: no prior-state witness, no in-circuit monotonicity or
// expiry. It must never be reported with the guarantees of a ZkProof.
type AttestedProof struct {
	Claim *types.AttestedClaim
}

// Assurance implements Proof.
func (AttestedProof) Assurance() types.AssuranceLevel { return types.AssuranceAttested }
