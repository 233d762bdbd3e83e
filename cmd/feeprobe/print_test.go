package main

import (
	"bytes"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/0xsequence/feeprobe/sonic"
	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func measuredReport() *taxprobe.Report {
	creator := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	return &taxprobe.Report{
		RunID:     "run-1",
		Network:   "mainnet",
		Token:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Creator:   creator,
		StartedAt: time.Unix(1_700_000_000, 0).UTC(),
		Elapsed:   "1.2s",
		Outcome:   taxprobe.OutcomeMeasured,
		Profile: &taxprobe.TokenProfile{
			Symbol:      "TAX",
			TotalSupply: ethtest.TokenUnits(1_000_000, 18),
			Decimals:    18,
			Unit:        ethtest.TokenUnits(1, 18),
		},
		Resolution: &taxprobe.OwnerResolution{
			Holder:  creator,
			Creator: creator,
			Balance: ethtest.TokenUnits(1_000_000, 18),
			Branch:  taxprobe.OwnerMissing,
		},
		Bootstrap: &taxprobe.BootstrapResult{
			Holder:       creator,
			Liquidity:    ethtest.TokenUnits(1_000_000, 18),
			LiquidityETH: ethtest.ETHValue(1),
		},
		ProbeState: "succeeded(100)",
		Attempts:   400,
		Probe: &taxprobe.ProbeResult{
			BasisPoint:     100,
			Requested:      ethtest.TokenUnits(9_999, 18),
			Received:       new(big.Int).Mul(big.NewInt(949_905), big.NewInt(1e16)),
			FeePercent:     big.NewInt(5),
			FeeBasisPoints: big.NewInt(500),
			Pair:           common.HexToAddress("0x00000000000000000000000000000000000000b1"),
			Reserves:       &ethcontract.Reserves{Reserve0: big.NewInt(1), Reserve1: big.NewInt(2)},
		},
	}
}

func TestPrintReportColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, measuredReport(), false))
	out := buf.String()

	rows := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(rows[0], "run"))
	assert.True(t, strings.HasPrefix(rows[len(rows)-1], "elapsed"))
	for _, row := range rows {
		assert.Contains(t, row, "|", "rows are tab aligned: %q", row)
	}

	assert.Contains(t, out, "owner-missing")
	assert.Contains(t, out, "1000000 / 1 ETH")
	assert.Contains(t, out, "9999")
	assert.Contains(t, out, "9499.05")
	assert.Contains(t, out, "5% (500 bp)")
	assert.Contains(t, out, "succeeded(100) after 400 steps")
	assert.NotContains(t, out, "failure")
}

func TestPrintReportFailure(t *testing.T) {
	r := measuredReport()
	r.Outcome = taxprobe.OutcomeFailed
	r.Failure = "taxprobe: no swap succeeded in the sweep"
	r.ErrorClass = "heuristic"
	r.Reason = taxprobe.ReasonNoTradableAmount
	r.Probe = nil

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, r, false))
	assert.Contains(t, buf.String(), "heuristic")
	assert.Contains(t, buf.String(), "no-tradable-amount")
	assert.Contains(t, buf.String(), "no swap succeeded")
	assert.NotContains(t, buf.String(), "bp)")
}

func TestPrintReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, measuredReport(), true))

	var decoded map[string]any
	require.NoError(t, sonic.Config.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "measured", decoded["outcome"])
	assert.Equal(t, "run-1", decoded["runId"])

	resolution := decoded["resolution"].(map[string]any)
	assert.Equal(t, "owner-missing", resolution["branch"])

	probe := decoded["probe"].(map[string]any)
	assert.EqualValues(t, 100, probe["basisPoint"])
	assert.NotContains(t, probe, "attempts")
}

func TestCustomFormat(t *testing.T) {
	assert.Equal(t, "-", customFormat(nil))
	assert.Equal(t, "-", customFormat((*big.Int)(nil)))
	assert.Equal(t, "123456789012345678901234567890", customFormat(func() *big.Int {
		v, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
		return v
	}()))
	assert.Equal(t, "42", customFormat(uint64(42)))
	assert.Equal(t, "owner-differs", customFormat(taxprobe.OwnerDiffers))
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, isTerminal(&buf))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}
