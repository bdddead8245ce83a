package types

import (
	"encoding/hex"
	"fmt"

	"github.com/vocdoni/consent-z-sandbox/util"
)

// HexBytes is a []byte which encodes as hexadecimal in JSON. The leading
// "0x" prefix is accepted when decoding and omitted when encoding.
type HexBytes []byte

// String returns the hex string representation of b, without 0x prefix.
func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// MarshalJSON implements the json.Marshaler interface.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+2)
	enc[0] = '"'
	hex.Encode(enc[1:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	data = data[1 : len(data)-1]
	// strip the optional 0x prefix
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}
	decLen := hex.DecodedLen(len(data))
	if cap(*b) < decLen {
		*b = make([]byte, decLen)
	}
	*b = (*b)[:decLen]
	if _, err := hex.Decode(*b, data); err != nil {
		return err
	}
	return nil
}

// HexStringToHexBytes converts a hex string, with or without 0x prefix, to
// HexBytes. It panics on invalid input, so it is meant for hardcoded values
// and tests.
func HexStringToHexBytes(s string) HexBytes {
	b, err := hex.DecodeString(util.TrimHex(s))
	if err != nil {
		panic(fmt.Sprintf("invalid hex string %q: %v", s, err))
	}
	return b
}
