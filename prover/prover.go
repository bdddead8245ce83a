// Package prover is the client-side proof adapter. It loads the circuit
// artifacts, generates groth16 proofs for consent transitions and, when the
// artifacts are unavailable, falls back to building signed attested claims.
package prover

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/crypto/hash/poseidon"
	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

var (
	// ErrProverUnavailable means the circuit artifacts could not be
	// loaded. Callers may downgrade to the attested-claim path.
	ErrProverUnavailable = errors.New("prover unavailable")
	// ErrProofInFlight means a proof generation is already running.
	// Proving is CPU bound and operates on a snapshot of the accumulator
	// root, so concurrent generations from the same witness would race on
	// admission anyway.
	ErrProofInFlight = errors.New("proof generation already in progress")
)

// Prover generates consent transition proofs with a loaded groth16 key
// pair. It is a single-flight component: only one proof at a time.
type Prover struct {
	artifacts *consenttransition.Artifacts
	busy      atomic.Bool
}

// New loads the circuit artifacts from dir. A load failure is reported as
// ErrProverUnavailable so callers can branch into the attested fallback.
func New(artifactsDir string) (*Prover, error) {
	artifacts, err := consenttransition.Load(artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProverUnavailable, err)
	}
	return &Prover{artifacts: artifacts}, nil
}

// NewFromArtifacts builds a prover around already loaded artifacts.
func NewFromArtifacts(artifacts *consenttransition.Artifacts) *Prover {
	return &Prover{artifacts: artifacts}
}

// Prove generates a groth16 proof for the given full assignment and returns
// it serialized. A second call while one is running fails fast with
// ErrProofInFlight.
func (p *Prover) Prove(assignment *consenttransition.Circuit) (types.HexBytes, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrProofInFlight
	}
	defer p.busy.Store(false)

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	proof, err := groth16.Prove(p.artifacts.CCS, p.artifacts.ProvingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	buf := bytes.Buffer{}
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// ProveTransition derives the witness for a consent transition and proves
// it. old is nil on a first-ever transition; otherwise oldProof must be a
// membership proof of the old record against the current accumulator root.
func (p *Prover) ProveTransition(identitySecret *big.Int, old *types.ConsentRecord,
	oldProof *state.MerkleProof, next types.ConsentRecord,
	domainSalt *big.Int, currentTime uint64,
) (types.HexBytes, *consenttransition.PublicSignals, error) {
	assignment, signals, err := consenttransition.GenerateInputs(
		identitySecret, old, oldProof, next, domainSalt, currentTime)
	if err != nil {
		return nil, nil, fmt.Errorf("generate inputs: %w", err)
	}
	log.Debugw("proving consent transition",
		"nullifier", signals.Nullifier.String(),
		"root", signals.Root.String())
	proof, err := p.Prove(assignment)
	if err != nil {
		return nil, nil, err
	}
	return proof, signals, nil
}

// BuildAttestedClaim derives the nullifier and new commitment for the
// transition and signs their digest with the attestation key. It is the
// fallback submission when proving is unavailable and carries materially
// weaker guarantees than a zk proof.
func BuildAttestedClaim(key *ecdsa.PrivateKey, identitySecret *big.Int,
	next types.ConsentRecord, domainSalt *big.Int,
) (*types.AttestedClaim, error) {
	nullifier, err := poseidon.ConsentNullifier(identitySecret, domainSalt)
	if err != nil {
		return nil, err
	}
	commitment, err := poseidon.ConsentCommitment(
		new(big.Int).SetUint64(uint64(next.Bits)),
		new(big.Int).SetUint64(next.Timestamp),
		identitySecret)
	if err != nil {
		return nil, err
	}
	claim := &types.AttestedClaim{
		Nullifier:  new(types.BigInt).SetBigInt(nullifier),
		Commitment: new(types.BigInt).SetBigInt(commitment),
		Timestamp:  next.Timestamp,
	}
	signature, err := ethcrypto.Sign(claim.Digest(domainSalt), key)
	if err != nil {
		return nil, fmt.Errorf("sign attested claim: %w", err)
	}
	claim.Signature = signature
	return claim, nil
}
