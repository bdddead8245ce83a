// Package identity persists the client identity secret, the single value
// every commitment and nullifier is derived from. The secret never leaves
// the store in raw form except to derive witnesses and the attestation key.
package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/vocdoni/consent-z-sandbox/types"
	"github.com/vocdoni/consent-z-sandbox/util"
)

const idPrefix = "id/"

var secretKey = []byte("secret")

// attestationSalt separates the secp256k1 attestation key derivation from
// any other use of the identity secret.
var attestationSalt = []byte("attestation")

// Store keeps the identity secret in a prefixed partition of the given
// database.
type Store struct {
	db db.Database
}

// NewStore wraps database with the identity prefix.
func NewStore(database db.Database) *Store {
	return &Store{db: prefixeddb.NewPrefixedDatabase(database, []byte(idPrefix))}
}

// GetOrCreate returns the persisted identity secret as a BN254 field
// element, generating and persisting a fresh random 32-byte secret on first
// use. An existing secret is never regenerated.
func (s *Store) GetOrCreate() (*big.Int, error) {
	raw, err := s.db.Get(secretKey)
	if err == nil {
		return util.BigToFF(new(big.Int).SetBytes(raw)), nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("read identity secret: %w", err)
	}
	secret := util.RandomBytes(types.SecretLen)
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(secretKey, secret); err != nil {
		return nil, fmt.Errorf("store identity secret: %w", err)
	}
	if err := wTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit identity secret: %w", err)
	}
	return util.BigToFF(new(big.Int).SetBytes(secret)), nil
}

// Forget erases the persisted secret. The next GetOrCreate mints a fresh
// one, so every nullifier derived afterwards is unlinkable to the previous
// identity. Forgetting an absent secret is not an error.
func (s *Store) Forget() error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete(secretKey); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("delete identity secret: %w", err)
	}
	return wTx.Commit()
}

// AttestationKey derives the secp256k1 key used to sign attested claims
// when the prover is unavailable. The derivation is deterministic over the
// stored secret, so Forget also rotates the attestation key.
func (s *Store) AttestationKey() (*ecdsa.PrivateKey, error) {
	raw, err := s.db.Get(secretKey)
	if err != nil {
		return nil, fmt.Errorf("read identity secret: %w", err)
	}
	seed := ethcrypto.Keccak256(raw, attestationSalt)
	key, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("derive attestation key: %w", err)
	}
	return key, nil
}
