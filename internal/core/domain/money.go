package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// NativeDecimals is the wei scale of the native asset.
const NativeDecimals = 18

// ToBaseUnits converts a decimal amount string ("1.5") into integer base
// units (wei for the native asset, 10^decimals for tokens). The conversion
// is exact: amounts with more fractional digits than the asset supports are
// rejected rather than rounded. No floating point is involved.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FromBaseUnits renders integer base units as a decimal amount string with
// trailing zeros trimmed ("1500000000000000000", 18 -> "1.5").
func FromBaseUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	s := r.FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
