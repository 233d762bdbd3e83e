package taxprobe_test

import (
	"math/big"
	"testing"

	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/stretchr/testify/assert"
)

func TestNewProberBounds(t *testing.T) {
	deadline := big.NewInt(1984669967)
	weth := ethtest.DefaultWETH

	cases := []struct {
		name       string
		start, end uint
		ok         bool
	}{
		{"defaults", 0, 0, true},
		{"narrow", 300, 200, true},
		{"single step", 7, 7, true},
		{"start above max", 500, 1, false},
		{"end above start", 10, 11, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := taxprobe.NewProber(nil, nil, nil, nil, nil, weth, log, taxprobe.ProberOptions{
				StartBasisPoint: c.start,
				EndBasisPoint:   c.end,
				Deadline:        deadline,
			})
			if !c.ok {
				assert.ErrorIs(t, err, taxprobe.ErrInvalidParams)
				assert.Equal(t, "setup", taxprobe.ErrorClass(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, taxprobe.ProbeState{Phase: taxprobe.NotStarted}, p.State())
			assert.Empty(t, p.Attempts())
		})
	}

	_, err := taxprobe.NewProber(nil, nil, nil, nil, nil, weth, log, taxprobe.ProberOptions{})
	assert.ErrorIs(t, err, taxprobe.ErrInvalidParams, "deadline is required")
}

func TestProbeStateString(t *testing.T) {
	assert.Equal(t, "not-started", taxprobe.ProbeState{}.String())
	assert.Equal(t, "sweeping(42)", taxprobe.ProbeState{Phase: taxprobe.Sweeping, BasisPoint: 42}.String())
	assert.Equal(t, "succeeded(7)", taxprobe.ProbeState{Phase: taxprobe.Succeeded, BasisPoint: 7}.String())
	assert.Equal(t, "exhausted", taxprobe.ProbeState{Phase: taxprobe.Exhausted}.String())
}
