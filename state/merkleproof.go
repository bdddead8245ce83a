package state

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
)

// ArboProof stores a membership proof in arbo native types.
type ArboProof struct {
	// Key+Value hashed through Siblings path, should produce Root hash
	Root      []byte
	Siblings  [][]byte
	Key       []byte
	Value     []byte
	Existence bool
}

// MerkleProof is an ArboProof translated to predicate witness form: big.Int
// values and a fixed-size sibling array padded with zeros. The direction
// bits of the path are the bits of Key (the leaf index).
type MerkleProof struct {
	Root     *big.Int
	Key      *big.Int
	Value    *big.Int
	Siblings [MaxLevels]*big.Int
}

// GenProof generates a membership proof for the leaf at the given insertion
// index against the current root. It takes the read lock, so it can be
// served concurrently with other reads but not with an admission.
func (s *State) GenProof(index uint64) (*MerkleProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= s.size {
		return nil, fmt.Errorf("leaf %d does not exist (size %d)", index, s.size)
	}
	root, err := s.tree.Root()
	if err != nil {
		return nil, err
	}
	key := arbo.BigIntToBytes(MaxKeyLen, new(big.Int).SetUint64(index))
	leafK, leafV, packedSiblings, existence, err := s.tree.GenProof(key)
	if err != nil {
		return nil, err
	}
	if !existence {
		return nil, fmt.Errorf("leaf %d: non-inclusion proof generated for an inserted leaf", index)
	}
	unpackedSiblings, err := arbo.UnpackSiblings(HashFunc, packedSiblings)
	if err != nil {
		return nil, err
	}
	p := ArboProof{
		Root:      root,
		Siblings:  unpackedSiblings,
		Key:       leafK,
		Value:     leafV,
		Existence: existence,
	}
	return merkleProofFromArboProof(p), nil
}

func merkleProofFromArboProof(p ArboProof) *MerkleProof {
	return &MerkleProof{
		Root:     arbo.BytesToBigInt(p.Root),
		Key:      arbo.BytesToBigInt(p.Key),
		Value:    arbo.BytesToBigInt(p.Value),
		Siblings: padSiblings(p.Siblings),
	}
}

func padSiblings(unpackedSiblings [][]byte) [MaxLevels]*big.Int {
	paddedSiblings := [MaxLevels]*big.Int{}
	for i := range MaxLevels {
		if i < len(unpackedSiblings) {
			paddedSiblings[i] = arbo.BytesToBigInt(unpackedSiblings[i])
		} else {
			paddedSiblings[i] = big.NewInt(0)
		}
	}
	return paddedSiblings
}

// EmptyMerkleProof returns the all-zero proof used for a first-ever
// transition, where the claimed root is the empty sentinel and the
// membership check is disabled in-circuit.
func EmptyMerkleProof() *MerkleProof {
	return &MerkleProof{
		Root:     big.NewInt(0),
		Key:      big.NewInt(0),
		Value:    big.NewInt(0),
		Siblings: padSiblings(nil),
	}
}
