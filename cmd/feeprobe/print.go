package main

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/0xsequence/feeprobe/sonic"
	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/0xsequence/feeprobe/util"
	"github.com/ethereum/go-ethereum/common"
)

type printableFormat struct {
	minwidth int
	tabwidth int
	padding  int
	padchar  byte
}

// NewPrintableFormat returns a customized configuration format
func NewPrintableFormat(minwidth, tabwidth, padding int, padchar byte) *printableFormat {
	return &printableFormat{minwidth, tabwidth, padding, padchar}
}

var defaultFormat = NewPrintableFormat(24, 0, 0, ' ')

// Printable is an ordered list of key-value rows.
type Printable struct {
	keys   []string
	values []string
}

func (p *Printable) Add(key string, value any) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, customFormat(value))
}

// Columnize returns a formatted-in-columns (vertically aligned) string based on a provided configuration.
func (p *Printable) Columnize(pf printableFormat) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, pf.minwidth, pf.tabwidth, pf.padding, pf.padchar, tabwriter.Debug)
	for i, k := range p.keys {
		fmt.Fprintf(w, "%s\t %s\n", k, p.values[i])
	}
	w.Flush()

	return buf.String()
}

func customFormat(value any) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case *big.Int:
		if v == nil {
			return "-"
		}
		return v.String()
	case fmt.Stringer:
		return v.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func reportPrintable(r *taxprobe.Report) *Printable {
	p := &Printable{}
	p.Add("run", r.RunID)
	p.Add("network", r.Network)
	p.Add("token", r.Token.Hex())
	p.Add("creator", r.Creator.Hex())
	if r.BlockNumber > 0 {
		p.Add("block", r.BlockNumber)
	} else {
		p.Add("block", "head")
	}
	if r.ForkedAt > 0 {
		p.Add("forked at", r.ForkedAt)
	}
	p.Add("outcome", string(r.Outcome))
	if r.Failure != "" {
		p.Add("error class", r.ErrorClass)
		p.Add("reason", r.Reason)
		p.Add("failure", r.Failure)
	}

	var decimals uint8
	if r.Profile != nil {
		decimals = r.Profile.Decimals
		if r.Profile.Symbol != "" {
			p.Add("symbol", r.Profile.Symbol)
		}
		p.Add("decimals", r.Profile.Decimals)
		p.Add("total supply", util.FormatUnits(r.Profile.TotalSupply, decimals))
	}

	if res := r.Resolution; res != nil {
		p.Add("owner branch", res.Branch)
		if res.Owner != (common.Address{}) {
			p.Add("owner", res.Owner.Hex())
		}
		p.Add("holder", res.Holder.Hex())
		p.Add("holder balance", util.FormatUnits(res.Balance, decimals))
		if res.CreatorBalanceSubstituted {
			p.Add("balance source", "creator")
		}
	}

	if b := r.Bootstrap; b != nil {
		p.Add("pool liquidity", fmt.Sprintf("%s / %s ETH", util.FormatUnits(b.Liquidity, decimals), util.FormatEther(b.LiquidityETH)))
		if b.Trading != nil {
			status := "accepted"
			if !b.Trading.Included {
				status = "rejected: " + b.Trading.Reason
			}
			p.Add("trading call", status)
		}
	}

	if r.ProbeState != "" {
		p.Add("sweep", fmt.Sprintf("%s after %d steps", r.ProbeState, r.Attempts))
	}
	if pr := r.Probe; pr != nil {
		p.Add("basis point", pr.BasisPoint)
		p.Add("requested", util.FormatUnits(pr.Requested, decimals))
		p.Add("received", util.FormatUnits(pr.Received, decimals))
		p.Add("fee", fmt.Sprintf("%s%% (%s bp)", pr.FeePercent, pr.FeeBasisPoints))
		if pr.PairMissing {
			p.Add("pair", "missing")
		} else if pr.Reserves != nil {
			p.Add("pair", pr.Pair.Hex())
			p.Add("reserves", fmt.Sprintf("%s / %s", pr.Reserves.Reserve0, pr.Reserves.Reserve1))
		}
	}
	p.Add("elapsed", r.Elapsed)
	return p
}

func printReport(w io.Writer, report *taxprobe.Report, asJSON bool) error {
	if report == nil {
		return nil
	}
	if asJSON {
		out, err := sonic.Config.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	_, err := fmt.Fprint(w, reportPrintable(report).Columnize(*defaultFormat))
	return err
}
