package ethcontract

import (
	_ "embed"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	//go:embed contracts/ERC20.json
	abiERC20 string

	//go:embed contracts/UniswapV2Router02.json
	abiUniswapV2Router string

	//go:embed contracts/UniswapV2Factory.json
	abiUniswapV2Factory string

	//go:embed contracts/UniswapV2Pair.json
	abiUniswapV2Pair string
)

var (
	ERC20ABI            = MustParseABI(abiERC20)
	UniswapV2RouterABI  = MustParseABI(abiUniswapV2Router)
	UniswapV2FactoryABI = MustParseABI(abiUniswapV2Factory)
	UniswapV2PairABI    = MustParseABI(abiUniswapV2Pair)
)

// Contracts registry of the ABIs the prober talks to, keyed by contract name.
var contractRegistry = map[string]abi.ABI{
	"ERC20":             ERC20ABI,
	"UniswapV2Router02": UniswapV2RouterABI,
	"UniswapV2Factory":  UniswapV2FactoryABI,
	"UniswapV2Pair":     UniswapV2PairABI,
}

func GetContractABI(name string) (abi.ABI, bool) {
	a, ok := contractRegistry[name]
	return a, ok
}

func ContractNames() []string {
	names := make([]string, 0, len(contractRegistry))
	for name := range contractRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
