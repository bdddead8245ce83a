package api

import (
	"github.com/vocdoni/consent-z-sandbox/types"
)

// ConsentRequest is a consent transition submission. Exactly one of Proof
// (with PublicSignals) or Offchain must be set; if both are present the zk
// proof wins, since it carries the stronger guarantees.
type ConsentRequest struct {
	// Proof is the gnark-serialized groth16 proof.
	Proof types.HexBytes `json:"proof,omitempty"`
	// PublicSignals are the five decimal-string field elements in wire
	// order: currentTime, domainSalt, newCommitment, nullifier, root.
	PublicSignals []string `json:"publicSignals,omitempty"`
	// Offchain is the signed fallback claim used when the client prover
	// is unavailable.
	Offchain *types.AttestedClaim `json:"offchain,omitempty"`
}

// ConsentResponse reports an admitted consent transition.
type ConsentResponse struct {
	Success   bool                 `json:"success"`
	Root      *types.BigInt        `json:"root,omitempty"`
	LeafIndex uint64               `json:"leafIndex"`
	Assurance types.AssuranceLevel `json:"assurance,omitempty"`
}

// RootResponse is the response to an accumulator root request.
type RootResponse struct {
	Root *types.BigInt `json:"root"`
	Size uint64        `json:"size"`
}
