package service

import (
	"bytes"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// ProofVerifier checks a serialized zk proof against its public signals.
// Implementations never return an error: any malformed input is simply an
// invalid proof.
type ProofVerifier interface {
	Verify(proof types.HexBytes, signals *consenttransition.PublicSignals) bool
}

// Groth16Verifier verifies consent transition proofs with a loaded groth16
// verifying key.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

// NewGroth16Verifier wraps the given verifying key.
func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// Verify implements ProofVerifier.
func (v *Groth16Verifier) Verify(proofBytes types.HexBytes, signals *consenttransition.PublicSignals) bool {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		log.Debugw("could not deserialize proof", "error", err)
		return false
	}
	publicWitness, err := frontend.NewWitness(signals.PublicAssignment(),
		ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		log.Debugw("could not build public witness", "error", err)
		return false
	}
	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		log.Debugw("proof verification failed", "error", err)
		return false
	}
	return true
}
