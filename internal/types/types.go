// internal/types/types.go
package types

import (
	"fmt"
	"strings"
)

// Address identifies an account holding stablecoin, shares or curve tokens.
// The empty address is the unset (zero) address.
type Address string

// ZeroAddress is the unset address.
const ZeroAddress Address = ""

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	if a.IsZero() {
		return "<zero>"
	}
	return string(a)
}

// ParseAddress normalizes user input into an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, ErrZeroAddress
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return ZeroAddress, fmt.Errorf("invalid address %q: contains whitespace", s)
	}
	return Address(s), nil
}
