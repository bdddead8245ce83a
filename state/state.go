// Package state implements the consent accumulator: an authenticated set of
// consent commitments stored as an arbo merkle tree, plus the nullifier set
// used for replay detection. It is the only mutable shared state of the
// verification service, and every admission mutates it through a single
// mutual-exclusion boundary (Admit).
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/consent-z-sandbox/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const (
	// MaxLevels is the depth of the consent accumulator tree.
	MaxLevels = types.ConsentTreeMaxLevels
	// MaxKeyLen is ceil(MaxLevels/8), the leaf key length in bytes.
	MaxKeyLen = types.ConsentKeyMaxLen
)

// HashFunc is the hash function used in the accumulator tree. It must match
// the in-circuit hash of the transition predicate.
var HashFunc = arbo.HashFunctionPoseidon

var (
	// Prefixes for the keys in the database.
	treePrefix      = []byte("t/")
	nullifierPrefix = []byte("n/")
	metaPrefix      = []byte("m/")

	// keySize is the key under metaPrefix holding the leaf count.
	keySize = []byte("size")
)

var (
	// ErrNullifierReused is returned by Admit when the nullifier has
	// already been recorded by a previous admission.
	ErrNullifierReused = errors.New("nullifier already used")
	// ErrStaleRoot is returned by Admit when the claimed root is neither
	// the empty sentinel nor the current accumulator root.
	ErrStaleRoot = errors.New("claimed root is stale")
	// ErrTreeFull is returned when the accumulator has no free leaves left.
	ErrTreeFull = errors.New("accumulator tree is full")
)

// State is the consent accumulator: a merkle tree over admitted commitments
// in insertion order plus the set of consumed nullifiers. The root at any
// time is a pure function of the sequence of inserted commitments, so two
// instances replaying the same sequence from empty converge on the same
// root.
type State struct {
	mu   sync.RWMutex
	db   db.Database
	tree *arbo.Tree
	size uint64
}

// New creates or opens a consent accumulator stored in the passed database.
func New(database db.Database) (*State, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, treePrefix),
		MaxLevels:    MaxLevels,
		HashFunction: HashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open accumulator tree: %w", err)
	}
	s := &State{
		db:   database,
		tree: tree,
	}
	if err := s.loadSize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) loadSize() error {
	rd := prefixeddb.NewPrefixedReader(s.db, metaPrefix)
	data, err := rd.Get(keySize)
	if errors.Is(err, db.ErrKeyNotFound) {
		s.size = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot load accumulator size: %w", err)
	}
	s.size = binary.BigEndian.Uint64(data)
	return nil
}

func (s *State) storeSize() error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, s.size)
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), metaPrefix)
	if err := wTx.Set(keySize, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// Size returns the number of commitments admitted so far.
func (s *State) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// CurrentRoot returns the present accumulator root as a big.Int. The empty
// tree root is zero, which doubles as the "no prior record" sentinel of the
// transition predicate.
func (s *State) CurrentRoot() (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoot()
}

func (s *State) currentRoot() (*big.Int, error) {
	root, err := s.tree.Root()
	if err != nil {
		return nil, err
	}
	return arbo.BytesToBigInt(root), nil
}

// RootValid reports whether claimedRoot is acceptable for a new transition:
// either the empty sentinel or the current root. Any other value, including
// roots that were once valid, is rejected so a client cannot conceal that
// the tree has moved on since its proof was generated.
func (s *State) RootValid(claimedRoot *big.Int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootValid(claimedRoot)
}

func (s *State) rootValid(claimedRoot *big.Int) bool {
	if claimedRoot == nil {
		return false
	}
	if claimedRoot.Sign() == 0 {
		return true
	}
	current, err := s.currentRoot()
	if err != nil {
		return false
	}
	return current.Cmp(claimedRoot) == 0
}

// HasNullifier reports whether n has been consumed by a previous admission.
func (s *State) HasNullifier(n *big.Int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasNullifier(n)
}

func (s *State) hasNullifier(n *big.Int) bool {
	rd := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix)
	_, err := rd.Get(arbo.BigIntToBytes(HashFunc.Len(), n))
	return err == nil
}

func (s *State) recordNullifier(n *big.Int, index uint64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, index)
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), nullifierPrefix)
	if err := wTx.Set(arbo.BigIntToBytes(HashFunc.Len(), n), value); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// insert appends commitment as the next leaf in insertion order and returns
// the new root. Caller must hold the write lock.
func (s *State) insert(commitment *big.Int) (*big.Int, uint64, error) {
	index := s.size
	if index >= 1<<MaxLevels {
		return nil, 0, ErrTreeFull
	}
	key := arbo.BigIntToBytes(MaxKeyLen, new(big.Int).SetUint64(index))
	value := arbo.BigIntToBytes(HashFunc.Len(), commitment)
	if err := s.tree.Add(key, value); err != nil {
		return nil, 0, fmt.Errorf("cannot add leaf %d: %w", index, err)
	}
	s.size++
	if err := s.storeSize(); err != nil {
		return nil, 0, err
	}
	root, err := s.currentRoot()
	if err != nil {
		return nil, 0, err
	}
	return root, index, nil
}

// Insert appends a commitment without any replay or root checks. It exists
// for tests and tooling; the verification service always goes through
// Admit.
func (s *State) Insert(commitment *big.Int) (*big.Int, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(commitment)
}

// Admit performs the admission critical section atomically: nullifier
// replay check, claimed root check, nullifier recording and commitment
// insertion. On success it returns the new root and the index of the
// inserted leaf. Exactly one of two concurrent calls with the same
// nullifier succeeds; the other gets ErrNullifierReused.
func (s *State) Admit(nullifier, commitment, claimedRoot *big.Int) (*big.Int, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasNullifier(nullifier) {
		return nil, 0, ErrNullifierReused
	}
	if !s.rootValid(claimedRoot) {
		return nil, 0, ErrStaleRoot
	}
	if s.size >= 1<<MaxLevels {
		return nil, 0, ErrTreeFull
	}
	// record before inserting, so a failed insert cannot leave a
	// commitment in the tree with its nullifier still unconsumed
	if err := s.recordNullifier(nullifier, s.size); err != nil {
		return nil, 0, err
	}
	return s.insert(commitment)
}

// Reset clears the nullifier set and the accumulator back to empty state.
// It is a non-production operation, exposed for test and demo environments.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys [][]byte
	if err := s.db.Iterate(nil, func(k, _ []byte) bool {
		kcopy := make([]byte, len(k))
		copy(kcopy, k)
		keys = append(keys, kcopy)
		return true
	}); err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	for _, k := range keys {
		if err := wTx.Delete(k); err != nil {
			wTx.Discard()
			return err
		}
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(s.db, treePrefix),
		MaxLevels:    MaxLevels,
		HashFunction: HashFunc,
	})
	if err != nil {
		return fmt.Errorf("cannot reopen accumulator tree: %w", err)
	}
	s.tree = tree
	s.size = 0
	return nil
}

// Close the database, no more operations can be done after this.
func (s *State) Close() error {
	return s.db.Close()
}
