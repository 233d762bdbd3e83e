package feeprobe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Address = common.Address

// ParseAddress accepts a 0x-prefixed or bare 20-byte hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (Address{}) {
		return Address{}, fmt.Errorf("zero address is not allowed")
	}
	return addr, nil
}
