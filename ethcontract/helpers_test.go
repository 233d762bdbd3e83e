package ethcontract_test

import (
	"testing"

	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, fork *ethtest.FakeFork) *ethrpc.Provider {
	t.Helper()
	p, err := ethrpc.NewProvider(fork.URL())
	require.NoError(t, err)
	return p
}
