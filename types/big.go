package types

import (
	"fmt"
	"math/big"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number. Note that a nil pointer value marshals as the empty
// string.
type BigInt big.Int

// UnmarshalJSON implements the json.Unmarshaler interface.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	return i.UnmarshalText(data)
}

// MarshalJSON implements the json.Marshaler interface.
func (i *BigInt) MarshalJSON() ([]byte, error) {
	text, err := i.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(text) + `"`), nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte(""), nil
	}
	return i.MathBigInt().MarshalText()
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (i *BigInt) UnmarshalText(data []byte) error {
	if err := i.MathBigInt().UnmarshalText(data); err != nil {
		return fmt.Errorf("cannot unmarshal %q into a BigInt: %w", data, err)
	}
	return nil
}

// String returns the decimal representation of i.
func (i *BigInt) String() string {
	return i.MathBigInt().String()
}

// SetBigInt sets i to x and returns i.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	i.MathBigInt().Set(x)
	return i
}

// SetUint64 sets i to x and returns i.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	i.MathBigInt().SetUint64(x)
	return i
}

// Equal helps us to compare two BigInt.
func (i *BigInt) Equal(j *BigInt) bool {
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}

// MathBigInt converts b to a math/big *Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}
