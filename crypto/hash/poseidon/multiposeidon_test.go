package poseidon

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

func TestMultiPoseidon(t *testing.T) {
	c := qt.New(t)

	_, err := MultiPoseidon()
	c.Assert(err, qt.IsNotNil)

	// determinism
	a, err := MultiPoseidon(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	c.Assert(err, qt.IsNil)
	b, err := MultiPoseidon(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	c.Assert(err, qt.IsNil)
	c.Assert(a.Cmp(b), qt.Equals, 0)

	// order matters
	d, err := MultiPoseidon(big.NewInt(3), big.NewInt(2), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(a.Cmp(d), qt.Not(qt.Equals), 0)

	// more than one chunk
	inputs := make([]*big.Int, 20)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i))
	}
	_, err = MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)
}

func TestConsentDigests(t *testing.T) {
	c := qt.New(t)

	secret := big.NewInt(424242)
	commitment, err := ConsentCommitment(big.NewInt(255), big.NewInt(1700000000), secret)
	c.Assert(err, qt.IsNil)
	c.Assert(commitment.Sign(), qt.Not(qt.Equals), 0)

	// the three-input digest must equal the bare poseidon permutation,
	// which is what the predicate computes in-circuit
	direct, err := poseidon.Hash([]*big.Int{big.NewInt(255), big.NewInt(1700000000), secret})
	c.Assert(err, qt.IsNil)
	c.Assert(commitment.Cmp(direct), qt.Equals, 0)

	// nullifier does not depend on consent content or time
	n1, err := ConsentNullifier(secret, big.NewInt(77))
	c.Assert(err, qt.IsNil)
	n2, err := ConsentNullifier(secret, big.NewInt(77))
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(n2), qt.Equals, 0)

	// but it does depend on the domain salt
	n3, err := ConsentNullifier(secret, big.NewInt(78))
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(n3), qt.Not(qt.Equals), 0)
}
