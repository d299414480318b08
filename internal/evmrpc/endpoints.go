package evmrpc

// Endpoints maps EndpointKey(chain, provider) to a JSON-RPC URL.
type Endpoints map[string]string

func EndpointKey(chain Chain, provider Provider) string {
	return string(chain) + ":" + string(provider)
}

// 公共节点地址；Alchemy 需要 key，Ankr 的 key 可选
var publicEndpoints = map[Chain]map[Provider]string{
	EthMainnet: {
		Ankr:       "https://rpc.ankr.com/eth",
		BlockPi:    "https://ethereum.blockpi.network/v1/rpc/public",
		Cloudflare: "https://cloudflare-eth.com/v1/mainnet",
		PublicNode: "https://ethereum-rpc.publicnode.com",
		LlamaNodes: "https://eth.llamarpc.com",
	},
	EthSepolia: {
		Ankr:       "https://rpc.ankr.com/eth_sepolia",
		BlockPi:    "https://ethereum-sepolia.blockpi.network/v1/rpc/public",
		PublicNode: "https://ethereum-sepolia-rpc.publicnode.com",
	},
	OptimismMainnet: {
		Ankr:       "https://rpc.ankr.com/optimism",
		BlockPi:    "https://optimism.blockpi.network/v1/rpc/public",
		PublicNode: "https://optimism-rpc.publicnode.com",
		LlamaNodes: "https://optimism.llamarpc.com",
	},
	BaseMainnet: {
		Ankr:       "https://rpc.ankr.com/base",
		BlockPi:    "https://base.blockpi.network/v1/rpc/public",
		PublicNode: "https://base-rpc.publicnode.com",
		LlamaNodes: "https://base.llamarpc.com",
	},
	ArbitrumOne: {
		Ankr:       "https://rpc.ankr.com/arbitrum",
		BlockPi:    "https://arbitrum.blockpi.network/v1/rpc/public",
		PublicNode: "https://arbitrum-one-rpc.publicnode.com",
		LlamaNodes: "https://arbitrum.llamarpc.com",
	},
}

var alchemyEndpoints = map[Chain]string{
	EthMainnet:      "https://eth-mainnet.g.alchemy.com/v2/",
	EthSepolia:      "https://eth-sepolia.g.alchemy.com/v2/",
	OptimismMainnet: "https://opt-mainnet.g.alchemy.com/v2/",
	BaseMainnet:     "https://base-mainnet.g.alchemy.com/v2/",
	ArbitrumOne:     "https://arb-mainnet.g.alchemy.com/v2/",
}

// defaultProviders 未指定 provider 时使用的集合
var defaultProviders = map[Chain][]Provider{
	EthMainnet:      {Ankr, BlockPi, PublicNode},
	EthSepolia:      {Ankr, BlockPi, PublicNode},
	OptimismMainnet: {Ankr, BlockPi, PublicNode},
	BaseMainnet:     {Ankr, BlockPi, PublicNode},
	ArbitrumOne:     {Ankr, BlockPi, PublicNode},
}

// DefaultProviders returns the provider set used when RpcServices lists none.
func DefaultProviders(chain Chain) []Provider {
	return append([]Provider(nil), defaultProviders[chain]...)
}

// DefaultEndpoints builds the endpoint table from the public URLs and API keys.
// Alchemy endpoints are only present when alchemyKey is set; overrides win.
func DefaultEndpoints(alchemyKey, ankrKey string, overrides map[string]string) Endpoints {
	out := make(Endpoints)
	for chain, providers := range publicEndpoints {
		for provider, url := range providers {
			if provider == Ankr && ankrKey != "" {
				url += "/" + ankrKey
			}
			out[EndpointKey(chain, provider)] = url
		}
	}
	if alchemyKey != "" {
		for chain, url := range alchemyEndpoints {
			out[EndpointKey(chain, Alchemy)] = url + alchemyKey
		}
	}
	for key, url := range overrides {
		out[key] = url
	}
	return out
}

// Lookup 返回 chain/provider 对应的 URL
func (e Endpoints) Lookup(chain Chain, provider Provider) (string, bool) {
	url, ok := e[EndpointKey(chain, provider)]
	return url, ok && url != ""
}
