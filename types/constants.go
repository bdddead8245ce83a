package types

const (
	// ConsentTreeMaxLevels is the number of levels of the consent
	// accumulator merkle tree. It bounds the accumulator to 2^20 admitted
	// commitments.
	ConsentTreeMaxLevels = 20
	// ConsentKeyMaxLen is the maximum length of an accumulator leaf key in
	// bytes, ceil(ConsentTreeMaxLevels/8).
	ConsentKeyMaxLen = (ConsentTreeMaxLevels + 7) / 8
	// ConsentBitsMax is the maximum value of the consent bitfield (8 bits,
	// one per consent category).
	ConsentBitsMax = 255
	// MaxConsentAge is the freshness window of a consent record in seconds
	// (2 years). A transition whose new timestamp is older than this
	// relative to the public current time has no satisfying witness.
	MaxConsentAge = 63072000
	// NumPublicSignals is the number of public signals of the consent
	// transition predicate: currentTime, domainSalt, newCommitment,
	// nullifier and root, in this order.
	NumPublicSignals = 5
	// SecretLen is the byte length of the client identity secret.
	SecretLen = 32
)
