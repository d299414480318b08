package evmrpc

import (
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockTag(t *testing.T) {
	cases := map[string]rpc.BlockNumber{
		"":          rpc.LatestBlockNumber,
		"latest":    rpc.LatestBlockNumber,
		"Finalized": rpc.FinalizedBlockNumber,
		"safe":      rpc.SafeBlockNumber,
		"pending":   rpc.PendingBlockNumber,
		"earliest":  rpc.EarliestBlockNumber,
		"1000":      rpc.BlockNumber(1000),
		"0x10":      rpc.BlockNumber(16),
	}
	for in, want := range cases {
		got, err := ParseBlockTag(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"newest", "-1", "0xzz"} {
		_, err := ParseBlockTag(bad)
		assert.Error(t, err, bad)
	}
}

func TestRpcServicesString(t *testing.T) {
	assert.Equal(t, "EthMainnet(Alchemy)", RpcServices{Chain: EthMainnet, Providers: []Provider{Alchemy}}.String())
	assert.Equal(t, "BaseMainnet(Ankr,PublicNode)", RpcServices{Chain: BaseMainnet, Providers: []Provider{Ankr, PublicNode}}.String())
	assert.Equal(t, "ArbitrumOne(default)", RpcServices{Chain: ArbitrumOne}.String())
}

func TestChainID(t *testing.T) {
	assert.Equal(t, int64(1), EthMainnet.ChainID())
	assert.Equal(t, int64(11155111), EthSepolia.ChainID())
	assert.Equal(t, int64(8453), BaseMainnet.ChainID())
	assert.Zero(t, Chain("Nope").ChainID())
}

func TestResultKey_DistinguishesShapes(t *testing.T) {
	ok := FeeHistoryResult{Ok: &FeeHistory{
		OldestBlock:   uint256.NewInt(1),
		BaseFeePerGas: []*uint256.Int{uint256.NewInt(3)},
	}}
	same := FeeHistoryResult{Ok: &FeeHistory{
		OldestBlock:   uint256.NewInt(1),
		BaseFeePerGas: []*uint256.Int{uint256.NewInt(3)},
	}}
	other := FeeHistoryResult{Ok: &FeeHistory{
		OldestBlock:   uint256.NewInt(1),
		BaseFeePerGas: []*uint256.Int{uint256.NewInt(4)},
	}}
	null := FeeHistoryResult{}
	failed := FeeHistoryResult{Err: &RpcError{Kind: JsonRpcError, Code: -32000, Message: "x"}}

	assert.Equal(t, ok.key(), same.key())
	assert.NotEqual(t, ok.key(), other.key())
	assert.NotEqual(t, ok.key(), null.key())
	assert.NotEqual(t, null.key(), failed.key())
}

func TestDefaultEndpoints(t *testing.T) {
	e := DefaultEndpoints("", "", nil)
	_, ok := e.Lookup(EthMainnet, Alchemy)
	assert.False(t, ok, "alchemy needs a key")

	url, ok := e.Lookup(EthMainnet, Ankr)
	require.True(t, ok)
	assert.Equal(t, "https://rpc.ankr.com/eth", url)

	e = DefaultEndpoints("ak", "nk", map[string]string{EndpointKey(BaseMainnet, PublicNode): "http://localhost:8545"})
	url, _ = e.Lookup(EthSepolia, Alchemy)
	assert.Equal(t, "https://eth-sepolia.g.alchemy.com/v2/ak", url)
	url, _ = e.Lookup(OptimismMainnet, Ankr)
	assert.Equal(t, "https://rpc.ankr.com/optimism/nk", url)
	url, _ = e.Lookup(BaseMainnet, PublicNode)
	assert.Equal(t, "http://localhost:8545", url)
}

func TestRpcErrorString(t *testing.T) {
	assert.Equal(t, "JsonRpcError(code=-32000, message=boom)", (&RpcError{Kind: JsonRpcError, Code: -32000, Message: "boom"}).Error())
	assert.Equal(t, "HttpOutcallError(timeout)", (&RpcError{Kind: HttpOutcallError, Message: "timeout"}).Error())
}
