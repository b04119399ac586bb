package model

import "math/big"

// NormalizeAmount divides a raw on-chain integer by 10^decimals.
func NormalizeAmount(raw *big.Int, decimals int16) float64 {
	if raw == nil {
		return 0
	}
	if decimals <= 0 {
		f, _ := new(big.Float).SetInt(raw).Float64()
		return f
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(raw, denom)
	f, _ := rat.Float64()
	return f
}

// ParseAmount parses a decimal-string amount back into a big integer.
func ParseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return value, true
}
