package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/prover"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

const testNow = uint64(1735689600)

var testSalt = big.NewInt(42)

// stubVerifier stands in for the groth16 backend so the state machine can
// be exercised without generating real proofs.
type stubVerifier struct {
	ok    bool
	block chan struct{}
}

func (v *stubVerifier) Verify(types.HexBytes, *consenttransition.PublicSignals) bool {
	if v.block != nil {
		<-v.block
	}
	return v.ok
}

func newTestService(t *testing.T, verifier ProofVerifier) *VerificationService {
	c := qt.New(t)
	st, err := state.New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)
	svc := New(st, verifier, testSalt)
	svc.now = func() uint64 { return testNow }
	return svc
}

// zkSubmission fabricates a first-transition submission for the given
// identity secret. The proof bytes are opaque to the stub verifier.
func zkSubmission(c *qt.C, secret int64) *ZkProof {
	next := types.ConsentRecord{Bits: 255, Timestamp: testNow - 60}
	_, signals, err := consenttransition.GenerateInputs(
		big.NewInt(secret), nil, nil, next, testSalt, testNow)
	c.Assert(err, qt.IsNil)
	return &ZkProof{Proof: types.HexBytes{0x01}, Signals: signals}
}

func TestSubmitZkAdmitted(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: true})

	receipt, err := svc.Submit(context.Background(), zkSubmission(c, 1001))
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Assurance, qt.Equals, types.AssuranceZk)
	c.Assert(receipt.LeafIndex, qt.Equals, uint64(0))
	c.Assert(receipt.Root.MathBigInt().Sign(), qt.Not(qt.Equals), 0)
}

func TestSubmitZkReplay(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: true})

	sub := zkSubmission(c, 1001)
	_, err := svc.Submit(context.Background(), sub)
	c.Assert(err, qt.IsNil)
	_, err = svc.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, state.ErrNullifierReused)
}

func TestSubmitZkInvalidProof(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: false})

	_, err := svc.Submit(context.Background(), zkSubmission(c, 1001))
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
}

func TestSubmitZkMalformed(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: true})
	ctx := context.Background()

	// missing signals
	_, err := svc.Submit(ctx, &ZkProof{Proof: types.HexBytes{0x01}})
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)

	// missing proof bytes
	sub := zkSubmission(c, 1001)
	_, err = svc.Submit(ctx, &ZkProof{Signals: sub.Signals})
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)

	// domain salt not ours
	wrongSalt := zkSubmission(c, 1001)
	wrongSalt.Signals.DomainSalt = big.NewInt(43)
	_, err = svc.Submit(ctx, wrongSalt)
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)

	// currentTime signal far from the server clock
	skewed := zkSubmission(c, 1001)
	skewed.Signals.CurrentTime = new(big.Int).SetUint64(testNow + MaxClockSkew + 1)
	_, err = svc.Submit(ctx, skewed)
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)

	// a field element beyond 2^64 whose low 64 bits equal the server
	// clock must not slip through the skew check by truncation
	huge := zkSubmission(c, 1001)
	huge.Signals.CurrentTime = new(big.Int).Add(
		new(big.Int).Lsh(big.NewInt(1), 64), new(big.Int).SetUint64(testNow))
	_, err = svc.Submit(ctx, huge)
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)
}

func TestSubmitZkStaleRoot(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: true})
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, zkSubmission(c, 1001))
	c.Assert(err, qt.IsNil)
	oldRoot := receipt.Root.MathBigInt()
	_, err = svc.Submit(ctx, zkSubmission(c, 1002))
	c.Assert(err, qt.IsNil)

	// claims the pre-advance root: the stub verifier accepts, the
	// accumulator must not
	stale := zkSubmission(c, 1003)
	stale.Signals.Root = oldRoot
	_, err = svc.Submit(ctx, stale)
	c.Assert(err, qt.ErrorIs, state.ErrStaleRoot)
}

func TestSubmitZkVerifierTimeout(t *testing.T) {
	c := qt.New(t)
	block := make(chan struct{})
	defer close(block)
	svc := newTestService(t, &stubVerifier{ok: true, block: block})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.Submit(ctx, zkSubmission(c, 1001))
	c.Assert(err, qt.ErrorIs, ErrVerifierTimeout)
}

func attestedSubmission(c *qt.C, secret int64, timestamp uint64) *AttestedProof {
	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	claim, err := prover.BuildAttestedClaim(key, big.NewInt(secret),
		types.ConsentRecord{Bits: 255, Timestamp: timestamp}, testSalt)
	c.Assert(err, qt.IsNil)
	return &AttestedProof{Claim: claim}
}

func TestSubmitAttestedAdmitted(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: false})

	receipt, err := svc.Submit(context.Background(), attestedSubmission(c, 1001, testNow-60))
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Assurance, qt.Equals, types.AssuranceAttested)
	c.Assert(receipt.Root.MathBigInt().Sign(), qt.Not(qt.Equals), 0)

	// the attested path still consumes the nullifier
	_, err = svc.Submit(context.Background(), attestedSubmission(c, 1001, testNow-30))
	c.Assert(err, qt.ErrorIs, state.ErrNullifierReused)
}

func TestSubmitAttestedRejections(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, &stubVerifier{ok: false})
	ctx := context.Background()

	// incomplete claim
	_, err := svc.Submit(ctx, &AttestedProof{Claim: &types.AttestedClaim{}})
	c.Assert(err, qt.ErrorIs, ErrMalformedRequest)

	// expired claim
	_, err = svc.Submit(ctx, attestedSubmission(c, 1002, testNow-types.MaxConsentAge-1))
	c.Assert(err, qt.ErrorIs, ErrInvalidAttestation)

	// future claim
	_, err = svc.Submit(ctx, attestedSubmission(c, 1003, testNow+MaxClockSkew+1))
	c.Assert(err, qt.ErrorIs, ErrInvalidAttestation)

	// a timestamp slightly ahead of the server clock is inside the
	// allowed skew and must be admitted, not misreported as expired
	receipt, err := svc.Submit(ctx, attestedSubmission(c, 1005, testNow+1))
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Assurance, qt.Equals, types.AssuranceAttested)

	// unrecoverable signature
	bad := attestedSubmission(c, 1004, testNow-60)
	bad.Claim.Signature[64] = 9
	_, err = svc.Submit(ctx, bad)
	c.Assert(err, qt.ErrorIs, ErrInvalidAttestation)
}
