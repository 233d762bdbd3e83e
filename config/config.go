// Package config holds the process-wide settings of a fee probe run. A Config
// is built once at startup and passed explicitly to the simulation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xsequence/feeprobe/ethfork"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Config struct {
	// Network selects the embedded contract preset (mainnet, bsc). Leave
	// empty or set to "custom" to configure contracts by hand.
	Network string `yaml:"network" envconfig:"FEEPROBE_NETWORK"`

	RPC       RPCConfig       `yaml:"rpc"`
	Contracts ContractsConfig `yaml:"contracts"`
	Fork      ForkConfig      `yaml:"fork"`
	Run       RunConfig       `yaml:"run"`
	Trading   TradingConfig   `yaml:"trading"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type RPCConfig struct {
	UpstreamURL string `yaml:"upstreamUrl" envconfig:"FEEPROBE_RPC_UPSTREAM_URL"`
}

type ContractsConfig struct {
	Router  string `yaml:"router" envconfig:"FEEPROBE_ROUTER"`
	Factory string `yaml:"factory" envconfig:"FEEPROBE_FACTORY"`

	// WETH is read from the router when empty.
	WETH string `yaml:"weth" envconfig:"FEEPROBE_WETH"`
}

const (
	LauncherProcess   = "process"
	LauncherContainer = "container"
	LauncherAttach    = "attach"
)

type ForkConfig struct {
	Launcher  string        `yaml:"launcher" envconfig:"FEEPROBE_FORK_LAUNCHER"`
	AnvilPath string        `yaml:"anvilPath" envconfig:"FEEPROBE_ANVIL_PATH"`
	Image     string        `yaml:"image" envconfig:"FEEPROBE_FORK_IMAGE"`
	URL       string        `yaml:"url" envconfig:"FEEPROBE_FORK_URL"`
	Mining    string        `yaml:"mining" envconfig:"FEEPROBE_FORK_MINING"`
	BlockTime time.Duration `yaml:"blockTime" envconfig:"FEEPROBE_FORK_BLOCK_TIME"`
}

type RunConfig struct {
	Timeout         time.Duration `yaml:"timeout" envconfig:"FEEPROBE_RUN_TIMEOUT"`
	StartBasisPoint uint          `yaml:"startBasisPoint" envconfig:"FEEPROBE_START_BASIS_POINT"`
	EndBasisPoint   uint          `yaml:"endBasisPoint" envconfig:"FEEPROBE_END_BASIS_POINT"`
	Deadline        uint64        `yaml:"deadline" envconfig:"FEEPROBE_DEADLINE"`
}

type TradingConfig struct {
	// Calldata is sent by the holder after liquidity is added, to open
	// trading on tokens that gate it. Empty skips the step.
	Calldata string `yaml:"calldata" envconfig:"FEEPROBE_TRADING_CALLDATA"`

	// Target defaults to the token.
	Target string `yaml:"target" envconfig:"FEEPROBE_TRADING_TARGET"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"FEEPROBE_LOG_LEVEL"`
}

const (
	MaxBasisPoint   = 499
	MinBasisPoint   = 1
	DefaultDeadline = 1984669967

	// DefaultTradingCalldata is setTrading(true), the most common toggle.
	DefaultTradingCalldata = "0x8f70ccf70000000000000000000000000000000000000000000000000000000000000001"
)

func Default() Config {
	return Config{
		Network: "mainnet",
		Fork: ForkConfig{
			Launcher:  LauncherProcess,
			AnvilPath: "anvil",
			Image:     ethfork.DefaultFoundryImage,
			Mining:    "manual",
			BlockTime: time.Second,
		},
		Run: RunConfig{
			Timeout:         10 * time.Minute,
			StartBasisPoint: MaxBasisPoint,
			EndBasisPoint:   MinBasisPoint,
			Deadline:        DefaultDeadline,
		},
		Trading: TradingConfig{
			Calldata: DefaultTradingCalldata,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	switch c.Fork.Launcher {
	case LauncherProcess, LauncherContainer:
		if c.RPC.UpstreamURL == "" {
			return fmt.Errorf("config: rpc.upstreamUrl is required for the %s launcher", c.Fork.Launcher)
		}
	case LauncherAttach:
		if c.Fork.URL == "" {
			return fmt.Errorf("config: fork.url is required for the attach launcher")
		}
	default:
		return fmt.Errorf("config: unknown fork.launcher %q", c.Fork.Launcher)
	}

	if _, err := ethfork.ParseMiningMode(c.Fork.Mining); err != nil {
		return fmt.Errorf("config: fork.mining: %w", err)
	}

	if !common.IsHexAddress(c.Contracts.Router) {
		return fmt.Errorf("config: contracts.router %q is not an address", c.Contracts.Router)
	}
	if !common.IsHexAddress(c.Contracts.Factory) {
		return fmt.Errorf("config: contracts.factory %q is not an address", c.Contracts.Factory)
	}
	if c.Contracts.WETH != "" && !common.IsHexAddress(c.Contracts.WETH) {
		return fmt.Errorf("config: contracts.weth %q is not an address", c.Contracts.WETH)
	}

	if c.Run.EndBasisPoint < MinBasisPoint || c.Run.StartBasisPoint > MaxBasisPoint || c.Run.EndBasisPoint > c.Run.StartBasisPoint {
		return fmt.Errorf("config: sweep %d..%d must satisfy %d <= end <= start <= %d",
			c.Run.StartBasisPoint, c.Run.EndBasisPoint, MinBasisPoint, MaxBasisPoint)
	}
	if c.Run.Deadline == 0 {
		return fmt.Errorf("config: run.deadline is required")
	}

	if c.Trading.Calldata != "" {
		data, err := hexutil.Decode(c.Trading.Calldata)
		if err != nil || len(data) < 4 {
			return fmt.Errorf("config: trading.calldata %q is not hex calldata", c.Trading.Calldata)
		}
	}
	if c.Trading.Target != "" && !common.IsHexAddress(c.Trading.Target) {
		return fmt.Errorf("config: trading.target %q is not an address", c.Trading.Target)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) RouterAddress() common.Address {
	return common.HexToAddress(c.Contracts.Router)
}

func (c *Config) FactoryAddress() common.Address {
	return common.HexToAddress(c.Contracts.Factory)
}

// WETHAddress returns the zero address when WETH should be read from the
// router.
func (c *Config) WETHAddress() common.Address {
	if c.Contracts.WETH == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Contracts.WETH)
}

func (c *Config) MiningMode() ethfork.MiningMode {
	mode, _ := ethfork.ParseMiningMode(c.Fork.Mining)
	return mode
}

// TradingTarget is where the trading toggle is sent for token.
func (c *Config) TradingTarget(token common.Address) common.Address {
	if c.Trading.Target == "" {
		return token
	}
	return common.HexToAddress(c.Trading.Target)
}
