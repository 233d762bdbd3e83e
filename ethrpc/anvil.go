package ethrpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Dev-node cheat codes, as served by anvil (and hardhat under the hardhat_
// prefix, which we do not use):
//
// anvil_impersonateAccount
// anvil_stopImpersonatingAccount
// anvil_setBalance
// anvil_getAutomine
// anvil_reset
// evm_mine
// evm_setAutomine
// evm_setIntervalMining
// evm_snapshot
// evm_revert

func ImpersonateAccount(account common.Address) Call {
	return NewCall("anvil_impersonateAccount", account)
}

func StopImpersonatingAccount(account common.Address) Call {
	return NewCall("anvil_stopImpersonatingAccount", account)
}

func SetBalance(account common.Address, wei *big.Int) Call {
	if wei == nil || wei.Sign() < 0 {
		return Call{err: ErrInvalidBalance}
	}
	return NewCall("anvil_setBalance", account, (*hexutil.Big)(wei))
}

// Mine produces exactly one block.
func Mine() Call {
	return NewCall("evm_mine")
}

func SetAutomine(enabled bool) Call {
	return NewCall("evm_setAutomine", enabled)
}

// SetIntervalMining switches the node to timed block production. A zero
// interval disables interval mining.
func SetIntervalMining(seconds uint64) Call {
	return NewCall("evm_setIntervalMining", seconds)
}

func GetAutomine() CallBuilder[bool] {
	return CallBuilder[bool]{
		method: "anvil_getAutomine",
	}
}

// Snapshot records the current chain state. The returned id is opaque and
// only valid for one Revert.
func Snapshot() CallBuilder[string] {
	return CallBuilder[string]{
		method: "evm_snapshot",
	}
}

func Revert(snapshotID string) CallBuilder[bool] {
	return CallBuilder[bool]{
		method: "evm_revert",
		params: []any{snapshotID},
	}
}

// ForkingParams re-pins a fork to a block of an upstream node.
type ForkingParams struct {
	JSONRPCURL  string `json:"jsonRpcUrl"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

type resetParams struct {
	Forking ForkingParams `json:"forking"`
}

// Reset drops all local state and forks upstream again at the given block.
func Reset(forking ForkingParams) Call {
	if forking.JSONRPCURL == "" {
		return Call{err: ErrInvalidReset}
	}
	return NewCall("anvil_reset", resetParams{Forking: forking})
}
