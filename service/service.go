// Package service implements the server-side verification state machine.
// Every consent submission walks the states Received, ProofChecked,
// ReplayChecked, RootChecked and either Admitted or Rejected, in that
// order, with the cheapest checks first. Admission itself (nullifier
// recording plus commitment insertion) is delegated to the accumulator,
// which applies it atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// MaxClockSkew bounds how far the proof's public currentTime signal may
// deviate from the server clock, in seconds. Without this bound a client
// could pick an arbitrary currentTime and void the freshness window the
// predicate enforces relative to it.
const MaxClockSkew = 300

// Status is a state of the verification machine. Transitions are logged so
// rejections can be traced to the exact check that failed.
type Status string

const (
	StatusReceived      Status = "received"
	StatusProofChecked  Status = "proof_checked"
	StatusReplayChecked Status = "replay_checked"
	StatusRootChecked   Status = "root_checked"
	StatusAdmitted      Status = "admitted"
	StatusRejected      Status = "rejected"
)

var (
	// ErrMalformedRequest means the submission is missing the proof or
	// the public signals, or they are not well-typed.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrInvalidProof means the zk proof did not verify.
	ErrInvalidProof = errors.New("invalid proof")
	// ErrInvalidAttestation means the attested claim signature or its
	// freshness window did not check out.
	ErrInvalidAttestation = errors.New("invalid attestation")
	// ErrVerifierTimeout means the verification backend did not answer
	// within the caller's deadline. It is only possible before the
	// admission critical section.
	ErrVerifierTimeout = errors.New("verifier timeout")
)

// Receipt reports a successful admission.
type Receipt struct {
	Root      *types.BigInt        `json:"root"`
	LeafIndex uint64               `json:"leafIndex"`
	Assurance types.AssuranceLevel `json:"assurance"`
}

// VerificationService validates consent submissions and advances the
// accumulator. It owns no locking itself: the accumulator serializes
// admissions, and verification runs before the critical section.
type VerificationService struct {
	state      *state.State
	verifier   ProofVerifier
	domainSalt *big.Int
	now        func() uint64
}

// New builds a verification service over an injected accumulator instance.
// domainSalt is the public per-domain salt every nullifier must be bound
// to.
func New(st *state.State, verifier ProofVerifier, domainSalt *big.Int) *VerificationService {
	return &VerificationService{
		state:      st,
		verifier:   verifier,
		domainSalt: domainSalt,
		now:        func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// DomainSalt returns the salt submissions must be bound to.
func (s *VerificationService) DomainSalt() *big.Int {
	return new(big.Int).Set(s.domainSalt)
}

// Submit runs a consent submission through the state machine. On success
// the receipt carries the new root, the leaf index of the inserted
// commitment and the assurance level. The context bounds only the proof
// verification call; once admission starts it runs to completion.
func (s *VerificationService) Submit(ctx context.Context, proof Proof) (*Receipt, error) {
	switch p := proof.(type) {
	case *ZkProof:
		return s.submitZk(ctx, p)
	case *AttestedProof:
		return s.submitAttested(p)
	default:
		return nil, s.reject(StatusReceived, ErrMalformedRequest, "unknown proof variant")
	}
}

func (s *VerificationService) submitZk(ctx context.Context, p *ZkProof) (*Receipt, error) {
	if len(p.Proof) == 0 || p.Signals == nil {
		return nil, s.reject(StatusReceived, ErrMalformedRequest, "missing proof or public signals")
	}
	// IsUint64 guards the truncation in Uint64: any field element with the
	// server clock in its low 64 bits would otherwise pass the skew check
	if !p.Signals.CurrentTime.IsUint64() ||
		skew(p.Signals.CurrentTime.Uint64(), s.now()) > MaxClockSkew {
		return nil, s.reject(StatusReceived, ErrMalformedRequest, "currentTime signal outside clock skew bound")
	}
	if p.Signals.DomainSalt.Cmp(s.domainSalt) != 0 {
		return nil, s.reject(StatusReceived, ErrMalformedRequest, "domain salt mismatch")
	}
	s.transition(StatusReceived, p)

	if err := s.verifyBounded(ctx, p); err != nil {
		return nil, s.reject(StatusProofChecked, err, "")
	}
	s.transition(StatusProofChecked, p)

	return s.admit(p, p.Signals.Nullifier, p.Signals.NewCommitment, p.Signals.Root)
}

func (s *VerificationService) submitAttested(p *AttestedProof) (*Receipt, error) {
	claim := p.Claim
	if claim == nil || claim.Nullifier == nil || claim.Commitment == nil || len(claim.Signature) == 0 {
		return nil, s.reject(StatusReceived, ErrMalformedRequest, "incomplete attested claim")
	}
	s.transition(StatusReceived, p)

	// the claim proves nothing in-circuit, so the freshness window is
	// re-checked here against the server clock
	now := s.now()
	if claim.Timestamp > now+MaxClockSkew {
		return nil, s.reject(StatusProofChecked, ErrInvalidAttestation, "claim timestamp in the future")
	}
	if claim.Timestamp <= now && now-claim.Timestamp > types.MaxConsentAge {
		return nil, s.reject(StatusProofChecked, ErrInvalidAttestation, "claim timestamp expired")
	}
	signer, err := ethcrypto.SigToPub(claim.Digest(s.domainSalt), claim.Signature)
	if err != nil {
		return nil, s.reject(StatusProofChecked, ErrInvalidAttestation, err.Error())
	}
	log.Debugw("attested claim signature recovered",
		"signer", ethcrypto.PubkeyToAddress(*signer).Hex(),
		"nullifier", claim.Nullifier.String())
	s.transition(StatusProofChecked, p)

	// an attested claim carries no membership root, so admission runs
	// against the always-valid empty sentinel
	return s.admit(p, claim.Nullifier.MathBigInt(), claim.Commitment.MathBigInt(), big.NewInt(0))
}

// admit covers ReplayChecked, RootChecked and Admitted. The three steps run
// as one atomic unit inside the accumulator; the per-step statuses are
// reconstructed from the failure kind for logging.
func (s *VerificationService) admit(p Proof, nullifier, commitment, claimedRoot *big.Int) (*Receipt, error) {
	root, index, err := s.state.Admit(nullifier, commitment, claimedRoot)
	switch {
	case errors.Is(err, state.ErrNullifierReused):
		return nil, s.reject(StatusReplayChecked, err, "")
	case errors.Is(err, state.ErrStaleRoot):
		return nil, s.reject(StatusRootChecked, err, "")
	case err != nil:
		return nil, s.reject(StatusRootChecked, fmt.Errorf("admission failed: %w", err), "")
	}
	s.transition(StatusReplayChecked, p)
	s.transition(StatusRootChecked, p)
	log.Infow("consent admitted",
		"status", string(StatusAdmitted),
		"assurance", string(p.Assurance()),
		"nullifier", nullifier.String(),
		"leafIndex", index,
		"root", root.String())
	return &Receipt{
		Root:      new(types.BigInt).SetBigInt(root),
		LeafIndex: index,
		Assurance: p.Assurance(),
	}, nil
}

// verifyBounded runs the verifier under the caller's context. The verify
// call itself is not interruptible, so on timeout the goroutine is left to
// finish and its result discarded.
func (s *VerificationService) verifyBounded(ctx context.Context, p *ZkProof) error {
	done := make(chan bool, 1)
	go func() { done <- s.verifier.Verify(p.Proof, p.Signals) }()
	select {
	case ok := <-done:
		if !ok {
			return ErrInvalidProof
		}
		return nil
	case <-ctx.Done():
		return ErrVerifierTimeout
	}
}

func (s *VerificationService) transition(status Status, p Proof) {
	log.Debugw("verification transition",
		"status", string(status),
		"assurance", string(p.Assurance()))
}

func (s *VerificationService) reject(at Status, err error, detail string) error {
	log.Warnw("consent rejected",
		"status", string(StatusRejected),
		"failedAt", string(at),
		"error", err.Error(),
		"detail", detail)
	return err
}

func skew(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
