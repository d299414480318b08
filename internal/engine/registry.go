package engine

import (
	"rpc-feeprobe-go/internal/evmrpc"
)

// Registry is the ordered, fixed list of endpoints to probe. Duplicate entries
// are legal and each is probed separately.
type Registry struct {
	entries []evmrpc.RpcServices
}

// NewRegistry copies the given entries so later changes by the caller do not
// leak into the registry.
func NewRegistry(entries ...evmrpc.RpcServices) Registry {
	cp := make([]evmrpc.RpcServices, len(entries))
	for i, e := range entries {
		cp[i] = evmrpc.RpcServices{
			Chain:     e.Chain,
			Providers: append([]evmrpc.Provider(nil), e.Providers...),
		}
	}
	return Registry{entries: cp}
}

func (r Registry) Len() int {
	return len(r.entries)
}

// Entries 返回副本
func (r Registry) Entries() []evmrpc.RpcServices {
	return NewRegistry(r.entries...).entries
}

func (r Registry) At(i int) evmrpc.RpcServices {
	return r.entries[i]
}

// 部署时探测的 (chain, provider) 组合
var defaultPairs = []struct {
	chain     evmrpc.Chain
	providers []evmrpc.Provider
}{
	{evmrpc.EthMainnet, []evmrpc.Provider{evmrpc.Alchemy, evmrpc.BlockPi, evmrpc.Cloudflare, evmrpc.PublicNode, evmrpc.Ankr}},
	{evmrpc.EthSepolia, []evmrpc.Provider{evmrpc.Alchemy, evmrpc.BlockPi, evmrpc.PublicNode, evmrpc.Ankr}},
	{evmrpc.OptimismMainnet, []evmrpc.Provider{evmrpc.Alchemy, evmrpc.BlockPi, evmrpc.PublicNode, evmrpc.Ankr}},
	{evmrpc.BaseMainnet, []evmrpc.Provider{evmrpc.Alchemy, evmrpc.BlockPi, evmrpc.PublicNode, evmrpc.Ankr}},
	{evmrpc.ArbitrumOne, []evmrpc.Provider{evmrpc.Alchemy, evmrpc.BlockPi, evmrpc.PublicNode, evmrpc.Ankr}},
}

// DefaultRegistry 每个 (chain, provider) 单独成为一个条目，共 21 个
func DefaultRegistry() Registry {
	var entries []evmrpc.RpcServices
	for _, p := range defaultPairs {
		for _, provider := range p.providers {
			entries = append(entries, evmrpc.RpcServices{
				Chain:     p.chain,
				Providers: []evmrpc.Provider{provider},
			})
		}
	}
	return NewRegistry(entries...)
}
