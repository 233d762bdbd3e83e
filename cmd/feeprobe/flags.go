package main

import (
	"fmt"

	"github.com/0xsequence/feeprobe"
	"github.com/0xsequence/feeprobe/config"
	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/spf13/cobra"
)

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("token", "", "Address of the token to probe")
	f.String("creator", "", "Address that deployed the token")
	f.Uint64P("block", "B", 0, "Block height to fork at, 0 for the upstream head")
	f.Bool("json", false, "Print the report as JSON")

	f.StringP("config", "c", "", "Path to a YAML config file")
	f.String("network", "", "Contract preset: mainnet, bsc or custom")
	f.StringP("rpc-url", "r", "", "Upstream RPC endpoint to fork")
	f.String("fork-url", "", "Use an already running fork instead of launching one")
	f.String("launcher", "", "How to start the fork: process, container or attach")
	f.String("anvil", "", "Path to the anvil binary for the process launcher")
	f.String("mining", "", "Fork mining mode: manual or interval")
	f.String("router", "", "UniswapV2 router address")
	f.String("factory", "", "UniswapV2 factory address")
	f.String("weth", "", "WETH address, read from the router when empty")
	f.Uint("start-bp", 0, "First sweep step in basis points of supply")
	f.Uint("end-bp", 0, "Last sweep step in basis points of supply")
	f.String("trading-calldata", "", "Hex calldata the holder sends to open trading, \"none\" to skip")
	f.String("trading-target", "", "Recipient of the trading calldata, the token by default")
	f.String("log-level", "", "debug, info, warn or error")

	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("creator")
}

// loadConfig layers flags that were set on top of the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	network, _ := flags.GetString("network")

	cfg, err := config.Load(config.LoadOptions{
		Path:     path,
		EnvFiles: config.DefaultEnvFiles,
		Network:  network,
	})
	if err != nil {
		return nil, err
	}

	stringFlags := map[string]*string{
		"rpc-url":          &cfg.RPC.UpstreamURL,
		"fork-url":         &cfg.Fork.URL,
		"launcher":         &cfg.Fork.Launcher,
		"anvil":            &cfg.Fork.AnvilPath,
		"mining":           &cfg.Fork.Mining,
		"router":           &cfg.Contracts.Router,
		"factory":          &cfg.Contracts.Factory,
		"weth":             &cfg.Contracts.WETH,
		"trading-calldata": &cfg.Trading.Calldata,
		"trading-target":   &cfg.Trading.Target,
		"log-level":        &cfg.Logging.Level,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("fork-url") && !flags.Changed("launcher") {
		cfg.Fork.Launcher = config.LauncherAttach
	}
	if cfg.Trading.Calldata == "none" {
		cfg.Trading.Calldata = ""
	}
	if flags.Changed("start-bp") {
		cfg.Run.StartBasisPoint, _ = flags.GetUint("start-bp")
	}
	if flags.Changed("end-bp") {
		cfg.Run.EndBasisPoint, _ = flags.GetUint("end-bp")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runParams(cmd *cobra.Command) (taxprobe.Params, error) {
	flags := cmd.Flags()
	fToken, _ := flags.GetString("token")
	fCreator, _ := flags.GetString("creator")
	fBlock, _ := flags.GetUint64("block")

	token, err := feeprobe.ParseAddress(fToken)
	if err != nil {
		return taxprobe.Params{}, fmt.Errorf("error: --token: %w", err)
	}
	creator, err := feeprobe.ParseAddress(fCreator)
	if err != nil {
		return taxprobe.Params{}, fmt.Errorf("error: --creator: %w", err)
	}
	return taxprobe.Params{Token: token, Creator: creator, BlockNumber: fBlock}, nil
}
