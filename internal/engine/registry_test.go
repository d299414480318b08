package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-feeprobe-go/internal/evmrpc"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 21, r.Len())

	perChain := map[evmrpc.Chain]int{}
	for _, e := range r.Entries() {
		require.Len(t, e.Providers, 1)
		perChain[e.Chain]++
	}
	assert.Equal(t, 5, perChain[evmrpc.EthMainnet])
	assert.Equal(t, 4, perChain[evmrpc.EthSepolia])
	assert.Equal(t, 4, perChain[evmrpc.OptimismMainnet])
	assert.Equal(t, 4, perChain[evmrpc.BaseMainnet])
	assert.Equal(t, 4, perChain[evmrpc.ArbitrumOne])

	assert.Equal(t, "EthMainnet(Alchemy)", r.At(0).String())
	assert.Equal(t, "ArbitrumOne(Ankr)", r.At(20).String())
}

func TestRegistry_IsImmutable(t *testing.T) {
	providers := []evmrpc.Provider{evmrpc.Ankr}
	r := NewRegistry(evmrpc.RpcServices{Chain: evmrpc.EthMainnet, Providers: providers})

	providers[0] = evmrpc.BlockPi
	assert.Equal(t, evmrpc.Ankr, r.At(0).Providers[0])

	entries := r.Entries()
	entries[0].Providers[0] = evmrpc.Cloudflare
	entries[0].Chain = evmrpc.BaseMainnet
	assert.Equal(t, evmrpc.Ankr, r.At(0).Providers[0])
	assert.Equal(t, evmrpc.EthMainnet, r.At(0).Chain)
}
