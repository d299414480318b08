package evmrpc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"rpc-feeprobe-go/pkg/network"
)

// Chain 被监控的网络
type Chain string

const (
	EthMainnet      Chain = "EthMainnet"
	EthSepolia      Chain = "EthSepolia"
	OptimismMainnet Chain = "OptimismMainnet"
	BaseMainnet     Chain = "BaseMainnet"
	ArbitrumOne     Chain = "ArbitrumOne"
)

// ChainID 返回链对应的 EIP-155 Chain ID
func (c Chain) ChainID() int64 {
	switch c {
	case EthMainnet:
		return network.MainnetChainID
	case EthSepolia:
		return network.SepoliaChainID
	case OptimismMainnet:
		return network.OptimismChainID
	case BaseMainnet:
		return network.BaseChainID
	case ArbitrumOne:
		return network.ArbitrumChainID
	default:
		return 0
	}
}

// Provider RPC 服务商
type Provider string

const (
	Alchemy    Provider = "Alchemy"
	Ankr       Provider = "Ankr"
	BlockPi    Provider = "BlockPi"
	Cloudflare Provider = "Cloudflare"
	PublicNode Provider = "PublicNode"
	LlamaNodes Provider = "LlamaNodes"
)

// RpcServices identifies one monitored target: a chain and the providers that
// back one logical fee-history call. An empty provider list means the chain's
// default provider set.
type RpcServices struct {
	Chain     Chain      `json:"chain"`
	Providers []Provider `json:"providers,omitempty"`
}

func (s RpcServices) String() string {
	if len(s.Providers) == 0 {
		return fmt.Sprintf("%s(default)", s.Chain)
	}
	names := make([]string, len(s.Providers))
	for i, p := range s.Providers {
		names[i] = string(p)
	}
	return fmt.Sprintf("%s(%s)", s.Chain, strings.Join(names, ","))
}

// FeeHistoryArgs eth_feeHistory 参数
type FeeHistoryArgs struct {
	BlockCount        uint64
	NewestBlock       rpc.BlockNumber
	RewardPercentiles []float64
}

// ParseBlockTag 解析 latest/safe/finalized/pending/earliest、十进制或 0x 块号
func ParseBlockTag(s string) (rpc.BlockNumber, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "latest":
		return rpc.LatestBlockNumber, nil
	case "safe":
		return rpc.SafeBlockNumber, nil
	case "finalized":
		return rpc.FinalizedBlockNumber, nil
	case "pending":
		return rpc.PendingBlockNumber, nil
	case "earliest":
		return rpc.EarliestBlockNumber, nil
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") {
		base, digits = 16, s[2:]
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid block tag %q", s)
	}
	return rpc.BlockNumber(n), nil
}

// FeeHistory eth_feeHistory 的有效载荷
type FeeHistory struct {
	OldestBlock   *uint256.Int
	BaseFeePerGas []*uint256.Int
	GasUsedRatio  []float64
	Reward        [][]*uint256.Int
}

// ErrorKind 单个 provider 的错误分类
type ErrorKind string

const (
	JsonRpcError     ErrorKind = "JsonRpcError"
	HttpOutcallError ErrorKind = "HttpOutcallError"
	ProviderError    ErrorKind = "ProviderError"
	ValidationError  ErrorKind = "ValidationError"
)

// RpcError 单个 provider 执行失败的描述
type RpcError struct {
	Kind    ErrorKind `json:"kind"`
	Code    int       `json:"code,omitempty"`
	Message string    `json:"message"`
}

func (e *RpcError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s(code=%d, message=%s)", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Message)
}

// FeeHistoryResult 单个来源的结果：Err 非空为错误，否则 Ok（可能为 nil，表示 provider 返回 null）
type FeeHistoryResult struct {
	Ok  *FeeHistory
	Err *RpcError
}

// ProviderResult 某个 provider 的原始结果
type ProviderResult struct {
	Provider Provider
	Result   FeeHistoryResult
}

// ResultTag 区分 MultiFeeHistoryResult 的两种形态；零值表示未打标签
type ResultTag int

const (
	TagNone ResultTag = iota
	TagConsistent
	TagInconsistent
)

// MultiFeeHistoryResult is either Consistent (all counted sources agreed, the
// shared result is carried) or Inconsistent (every source's result is carried).
// Tag is set by ConsistentResult and InconsistentResult.
type MultiFeeHistoryResult struct {
	Tag          ResultTag
	Consistent   *FeeHistoryResult
	Inconsistent []ProviderResult
}

func (m MultiFeeHistoryResult) IsConsistent() bool {
	return m.Tag != TagInconsistent && m.Consistent != nil
}

func (m MultiFeeHistoryResult) IsInconsistent() bool {
	return m.Tag == TagInconsistent
}

func ConsistentResult(r FeeHistoryResult) MultiFeeHistoryResult {
	return MultiFeeHistoryResult{Tag: TagConsistent, Consistent: &r}
}

func InconsistentResult(rs []ProviderResult) MultiFeeHistoryResult {
	return MultiFeeHistoryResult{Tag: TagInconsistent, Inconsistent: rs}
}

// Consensus decides when results from several providers count as consistent.
// Min == 0 requires every provider to agree; otherwise at least Min must.
type Consensus struct {
	Min int
}

func Equality() Consensus { return Consensus{} }

func Threshold(min int) Consensus { return Consensus{Min: min} }

// RpcConfig 覆盖单次调用的默认行为
type RpcConfig struct {
	Consensus Consensus
}

// key 用于比较不同来源的结果是否一致
func (r FeeHistoryResult) key() string {
	var b strings.Builder
	switch {
	case r.Err != nil:
		fmt.Fprintf(&b, "err|%s|%d|%s", r.Err.Kind, r.Err.Code, r.Err.Message)
	case r.Ok == nil:
		b.WriteString("null")
	default:
		b.WriteString("ok|")
		b.WriteString(decOrNil(r.Ok.OldestBlock))
		b.WriteString("|base")
		for _, v := range r.Ok.BaseFeePerGas {
			b.WriteString(":" + decOrNil(v))
		}
		b.WriteString("|ratio")
		for _, v := range r.Ok.GasUsedRatio {
			b.WriteString(":" + strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteString("|reward")
		for _, row := range r.Ok.Reward {
			b.WriteString("[")
			for _, v := range row {
				b.WriteString(":" + decOrNil(v))
			}
			b.WriteString("]")
		}
	}
	return b.String()
}

func decOrNil(v *uint256.Int) string {
	if v == nil {
		return "nil"
	}
	return v.Dec()
}

// FormatFees 以十进制形式输出费用序列
func FormatFees(fees []*uint256.Int) string {
	parts := make([]string, len(fees))
	for i, f := range fees {
		parts[i] = decOrNil(f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// toUint256 hexutil.Big 解码后的转换，nil 视为 0
func toUint256(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return uint256.NewInt(0), nil
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", b)
	}
	return v, nil
}
