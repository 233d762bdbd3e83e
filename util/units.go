package util

import (
	"math/big"
	"strings"
)

// FormatUnits renders amount as a decimal number with the given decimals,
// trimming trailing zeros: FormatUnits(1500000000000000000, 18) is "1.5".
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()

	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		whole, frac := digits[:len(digits)-int(decimals)], strings.TrimRight(digits[len(digits)-int(decimals):], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}
