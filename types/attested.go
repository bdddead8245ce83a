package types

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AttestedClaim is the fallback consent submission used when the zk prover
// is unavailable. It binds the nullifier, the new commitment and the grant
// timestamp under a secp256k1 signature made with a key derived from the
// identity secret. It proves none of the transition predicate checks and is
// admitted only with AssuranceAttested.
type AttestedClaim struct {
	Nullifier  *BigInt  `json:"nullifier"`
	Commitment *BigInt  `json:"commitment"`
	Timestamp  uint64   `json:"timestamp"`
	Signature  HexBytes `json:"signature"`
}

// Digest returns the keccak256 digest the claim signature covers:
// nullifier, commitment and domainSalt as 32-byte big-endian words followed
// by the timestamp as a 8-byte big-endian word. The domain salt is supplied
// by the verifying side so a claim cannot be replayed across domains.
func (a *AttestedClaim) Digest(domainSalt *big.Int) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], a.Timestamp)
	return ethcrypto.Keccak256(
		a.Nullifier.MathBigInt().FillBytes(make([]byte, 32)),
		a.Commitment.MathBigInt().FillBytes(make([]byte, 32)),
		domainSalt.FillBytes(make([]byte, 32)),
		ts[:],
	)
}
