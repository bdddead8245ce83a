package consenttransition

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"

	"github.com/vocdoni/consent-z-sandbox/crypto/hash/poseidon"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// PublicSignals holds the five public signals of the predicate in their
// canonical wire order.
type PublicSignals struct {
	CurrentTime   *big.Int
	DomainSalt    *big.Int
	NewCommitment *big.Int
	Nullifier     *big.Int
	Root          *big.Int
}

// Strings returns the signals as decimal strings, the transport encoding of
// field elements.
func (ps *PublicSignals) Strings() []string {
	return []string{
		ps.CurrentTime.String(),
		ps.DomainSalt.String(),
		ps.NewCommitment.String(),
		ps.Nullifier.String(),
		ps.Root.String(),
	}
}

// PublicSignalsFromStrings parses and validates the transported decimal
// strings. It fails if the count is wrong or any value is not a canonical
// BN254 field element.
func PublicSignalsFromStrings(signals []string) (*PublicSignals, error) {
	if len(signals) != types.NumPublicSignals {
		return nil, fmt.Errorf("expected %d public signals, got %d", types.NumPublicSignals, len(signals))
	}
	values := make([]*big.Int, types.NumPublicSignals)
	for i, s := range signals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("public signal %d is not a decimal number: %q", i, s)
		}
		if v.Sign() < 0 || v.Cmp(ecc.BN254.ScalarField()) >= 0 {
			return nil, fmt.Errorf("public signal %d is not a canonical field element", i)
		}
		values[i] = v
	}
	return &PublicSignals{
		CurrentTime:   values[0],
		DomainSalt:    values[1],
		NewCommitment: values[2],
		Nullifier:     values[3],
		Root:          values[4],
	}, nil
}

// PublicAssignment returns a circuit assignment with only the public fields
// set, as required to rebuild the public witness on the verifier side.
func (ps *PublicSignals) PublicAssignment() *Circuit {
	return &Circuit{
		CurrentTime:   ps.CurrentTime,
		DomainSalt:    ps.DomainSalt,
		NewCommitment: ps.NewCommitment,
		Nullifier:     ps.Nullifier,
		Root:          ps.Root,
	}
}

// GenerateInputs derives a full circuit assignment and its public signals
// from the client-side values. old is nil on a first-ever transition, in
// which case oldProof is ignored and the claimed root is the zero sentinel.
// For a non-first transition oldProof must be a membership proof of the old
// record's commitment, generated against the current accumulator root.
func GenerateInputs(identitySecret *big.Int, old *types.ConsentRecord,
	oldProof *state.MerkleProof, next types.ConsentRecord,
	domainSalt *big.Int, currentTime uint64,
) (*Circuit, *PublicSignals, error) {
	oldBits, oldTimestamp := big.NewInt(0), big.NewInt(0)
	if old == nil {
		oldProof = state.EmptyMerkleProof()
	} else {
		if oldProof == nil {
			return nil, nil, fmt.Errorf("missing membership proof for the old consent record")
		}
		oldBits = new(big.Int).SetUint64(uint64(old.Bits))
		oldTimestamp = new(big.Int).SetUint64(old.Timestamp)
		// fail closed before wasting proving time on an unsatisfiable witness
		oldCommitment, err := poseidon.ConsentCommitment(oldBits, oldTimestamp, identitySecret)
		if err != nil {
			return nil, nil, err
		}
		if oldProof.Value.Cmp(oldCommitment) != 0 {
			return nil, nil, fmt.Errorf("membership proof value does not match the old consent record")
		}
	}

	newBits := new(big.Int).SetUint64(uint64(next.Bits))
	newTimestamp := new(big.Int).SetUint64(next.Timestamp)
	newCommitment, err := poseidon.ConsentCommitment(newBits, newTimestamp, identitySecret)
	if err != nil {
		return nil, nil, err
	}
	nullifier, err := poseidon.ConsentNullifier(identitySecret, domainSalt)
	if err != nil {
		return nil, nil, err
	}

	signals := &PublicSignals{
		CurrentTime:   new(big.Int).SetUint64(currentTime),
		DomainSalt:    domainSalt,
		NewCommitment: newCommitment,
		Nullifier:     nullifier,
		Root:          oldProof.Root,
	}
	siblings := [types.ConsentTreeMaxLevels]frontend.Variable{}
	for i, sibling := range oldProof.Siblings {
		siblings[i] = sibling
	}
	assignment := &Circuit{
		CurrentTime:    signals.CurrentTime,
		DomainSalt:     signals.DomainSalt,
		NewCommitment:  signals.NewCommitment,
		Nullifier:      signals.Nullifier,
		Root:           signals.Root,
		IdentitySecret: identitySecret,
		OldConsentBits: oldBits,
		NewConsentBits: newBits,
		OldTimestamp:   oldTimestamp,
		NewTimestamp:   newTimestamp,
		LeafIndex:      oldProof.Key,
		Siblings:       siblings,
	}
	return assignment, signals, nil
}
