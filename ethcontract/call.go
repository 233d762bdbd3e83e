package ethcontract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UnsignedCall is an encoded contract invocation that has not been turned
// into a transaction. Native value is attached by the submitter.
type UnsignedCall struct {
	To     common.Address
	Data   []byte
	Method string
	Args   []interface{}
}

func (c UnsignedCall) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprintf("%v", a)
	}
	return fmt.Sprintf("%s(%s) -> %s", c.Method, strings.Join(args, ", "), c.To)
}

// RawCallMethod is the method label carried by calls built from raw calldata.
const RawCallMethod = "raw"

// RawCall builds a call from pre-encoded calldata. It is the escape hatch for
// token-specific functions outside the typed bindings, such as trading
// toggles.
func RawCall(to common.Address, calldata string) (UnsignedCall, error) {
	if err := requireAddress(RawCallMethod, "to", to); err != nil {
		return UnsignedCall{}, err
	}
	data, err := hexutil.Decode(calldata)
	if err != nil {
		return UnsignedCall{}, fmt.Errorf("%w: raw calldata: %v", ErrInvalidArgument, err)
	}
	if len(data) < 4 {
		return UnsignedCall{}, fmt.Errorf("%w: raw calldata shorter than a selector", ErrInvalidArgument)
	}
	return UnsignedCall{
		To:     to,
		Data:   data,
		Method: RawCallMethod,
		Args:   []interface{}{hexutil.Encode(data[:4])},
	}, nil
}
