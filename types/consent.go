package types

// ConsentRecord is a point-in-time consent grant. It is never transmitted
// directly: only its poseidon commitment, bound to the client identity
// secret, leaves the browser.
type ConsentRecord struct {
	// Bits is the consent bitfield, one bit per consent category. A
	// "fuller" consent is a bitwise superset, although the transition
	// predicate compares the field as an unsigned integer.
	Bits uint8 `json:"bits"`
	// Timestamp is the unix time in seconds at which the grant was made.
	Timestamp uint64 `json:"timestamp"`
}

// AssuranceLevel tags how a consent admission was validated.
type AssuranceLevel string

const (
	// AssuranceZk marks an admission backed by a zero-knowledge proof of
	// the full transition predicate.
	AssuranceZk AssuranceLevel = "zk"
	// AssuranceAttested marks an admission backed only by a signed claim.
	// It carries materially weaker guarantees: no proof that the signer
	// knew a valid prior-state witness and no in-circuit monotonicity or
	// expiry enforcement. It must never be presented as equivalent to
	// AssuranceZk.
	AssuranceAttested AssuranceLevel = "attested"
)
