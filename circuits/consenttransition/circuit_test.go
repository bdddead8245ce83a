package consenttransition

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/consent-z-sandbox/crypto/hash/poseidon"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

const testCurrentTime = uint64(1735689600) // 2025-01-01

var (
	testSecret = big.NewInt(918273645)
	testSalt   = big.NewInt(31337)
)

// newStateWithOldRecord inserts the commitment of old (plus some unrelated
// commitments, so the path is not trivial) and returns the accumulator and
// the membership proof of the old leaf.
func newStateWithOldRecord(t *testing.T, old types.ConsentRecord) (*state.State, *state.MerkleProof) {
	c := qt.New(t)
	st, err := state.New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)

	_, _, err = st.Insert(big.NewInt(111111))
	c.Assert(err, qt.IsNil)
	oldCommitment, err := poseidon.ConsentCommitment(
		new(big.Int).SetUint64(uint64(old.Bits)),
		new(big.Int).SetUint64(old.Timestamp),
		testSecret)
	c.Assert(err, qt.IsNil)
	_, index, err := st.Insert(oldCommitment)
	c.Assert(err, qt.IsNil)
	_, _, err = st.Insert(big.NewInt(222222))
	c.Assert(err, qt.IsNil)

	proof, err := st.GenProof(index)
	c.Assert(err, qt.IsNil)
	return st, proof
}

func TestFirstTransition(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	next := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime - 60}
	assignment, signals, err := GenerateInputs(testSecret, nil, nil, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)
	c.Assert(signals.Root.Sign(), qt.Equals, 0)

	assert.ProverSucceeded(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestUpgradeTransition(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	old := types.ConsentRecord{Bits: 3, Timestamp: testCurrentTime - 86400}
	_, proof := newStateWithOldRecord(t, old)

	next := types.ConsentRecord{Bits: 7, Timestamp: testCurrentTime - 60}
	assignment, signals, err := GenerateInputs(testSecret, &old, proof, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)
	c.Assert(signals.Root.Cmp(proof.Root), qt.Equals, 0)

	assert.ProverSucceeded(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestDowngradeUnsatisfiable(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	old := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime - 86400}
	_, proof := newStateWithOldRecord(t, old)

	next := types.ConsentRecord{Bits: 1, Timestamp: testCurrentTime - 60}
	assignment, _, err := GenerateInputs(testSecret, &old, proof, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)

	assert.ProverFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestExpiredTimestampUnsatisfiable(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	next := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime - types.MaxConsentAge - 1}
	assignment, _, err := GenerateInputs(testSecret, nil, nil, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)

	assert.ProverFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestFutureTimestampUnsatisfiable(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	next := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime + 3600}
	assignment, _, err := GenerateInputs(testSecret, nil, nil, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)

	assert.ProverFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestTamperedNullifierUnsatisfiable(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	next := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime - 60}
	assignment, _, err := GenerateInputs(testSecret, nil, nil, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)
	assignment.Nullifier = big.NewInt(123456789)

	assert.ProverFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestWrongRootUnsatisfiable(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)

	old := types.ConsentRecord{Bits: 3, Timestamp: testCurrentTime - 86400}
	_, proof := newStateWithOldRecord(t, old)

	next := types.ConsentRecord{Bits: 255, Timestamp: testCurrentTime - 60}
	assignment, _, err := GenerateInputs(testSecret, &old, proof, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)
	// a non-zero root different from the one the siblings hash up to
	assignment.Root = big.NewInt(987654321)

	assert.ProverFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestPublicSignalsRoundTrip(t *testing.T) {
	c := qt.New(t)

	next := types.ConsentRecord{Bits: 9, Timestamp: testCurrentTime - 60}
	_, signals, err := GenerateInputs(testSecret, nil, nil, next, testSalt, testCurrentTime)
	c.Assert(err, qt.IsNil)

	parsed, err := PublicSignalsFromStrings(signals.Strings())
	c.Assert(err, qt.IsNil)
	c.Assert(parsed.Nullifier.Cmp(signals.Nullifier), qt.Equals, 0)
	c.Assert(parsed.NewCommitment.Cmp(signals.NewCommitment), qt.Equals, 0)

	_, err = PublicSignalsFromStrings([]string{"1", "2", "3"})
	c.Assert(err, qt.IsNotNil)
	_, err = PublicSignalsFromStrings([]string{"1", "2", "3", "4", "not-a-number"})
	c.Assert(err, qt.IsNotNil)
}
