package chain

import (
	"errors"
	"math/big"
	"strings"
)

// ParseAmount converts a positive decimal string into the token's smallest
// unit (e.g. "10.5" with 6 decimals -> 10500000). It rejects empty input,
// non-numeric input, zero, negative values, and more fractional digits than
// the token carries.
func ParseAmount(decimal string, decimals int) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return nil, errors.New("amount is empty")
	}
	if strings.HasPrefix(decimal, "-") || strings.HasPrefix(decimal, "+") {
		return nil, errors.New("amount must be an unsigned decimal")
	}

	whole, frac := decimal, ""
	if i := strings.IndexByte(decimal, '.'); i >= 0 {
		whole, frac = decimal[:i], decimal[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, errors.New("amount has more precision than the token supports")
	}
	if !digitsOnly(whole) || (frac != "" && !digitsOnly(frac)) {
		return nil, errors.New("amount is not a decimal number")
	}

	// Scale to the smallest unit by padding the fraction.
	frac += strings.Repeat("0", decimals-len(frac))

	units, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, errors.New("amount is not a decimal number")
	}
	if units.Sign() <= 0 {
		return nil, errors.New("amount must be greater than zero")
	}
	return units, nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
