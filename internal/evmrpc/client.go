package evmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"rpc-feeprobe-go/internal/limiter"
	"rpc-feeprobe-go/internal/monitor"
	"rpc-feeprobe-go/pkg/network"
)

var (
	ErrNoProviders        = errors.New("no providers configured")
	ErrUnknownProvider    = errors.New("no endpoint configured")
	ErrInsufficientBudget = errors.New("insufficient cost budget")
	ErrInvalidConsensus   = errors.New("invalid consensus strategy")
)

// RequestObserver 每个 provider 请求完成后回调（用于指标）
type RequestObserver func(chain Chain, provider Provider, duration time.Duration, err *RpcError)

// Options 客户端配置
type Options struct {
	Endpoints     Endpoints
	RequestCost   uint64 // 每个 provider 请求的成本
	Timeout       time.Duration
	RateLimit     int
	VerifyChainID bool
	Quota         *monitor.QuotaMonitor // 可选
	HTTPClient    *http.Client
	OnRequest     RequestObserver
}

type providerConn struct {
	rpc *rpc.Client
	eth *ethclient.Client

	verifyMu  sync.Mutex
	verified  bool
	verifyErr error
}

// verify 只缓存确定的结果（通过或 Chain ID 不符），传输错误下次重试
func (p *providerConn) verify(ctx context.Context, expectedChainID int64) error {
	p.verifyMu.Lock()
	defer p.verifyMu.Unlock()
	if p.verified {
		return p.verifyErr
	}
	err := network.VerifyNetwork(ctx, p.eth, expectedChainID)
	if err == nil || errors.Is(err, network.ErrNetworkMismatch) {
		p.verified = true
		p.verifyErr = err
	}
	return err
}

// Client fans one logical eth_feeHistory call out to every provider of an
// RpcServices value and folds the answers into a MultiFeeHistoryResult.
type Client struct {
	opts     Options
	limiters *limiter.Set
	mu       sync.Mutex
	conns    map[string]*providerConn
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Endpoints == nil {
		opts.Endpoints = Endpoints{}
	}
	return &Client{
		opts:     opts,
		limiters: limiter.NewSet(opts.RateLimit),
		conns:    make(map[string]*providerConn),
	}
}

// RequiredBudget 返回一次调用需要附带的成本
func (c *Client) RequiredBudget(services RpcServices) uint64 {
	return c.opts.RequestCost * uint64(len(resolveProviders(services)))
}

func resolveProviders(services RpcServices) []Provider {
	if len(services.Providers) > 0 {
		return services.Providers
	}
	return DefaultProviders(services.Chain)
}

// FeeHistory performs eth_feeHistory against every provider of services.
// A non-nil error means the call itself was rejected or could not be made;
// provider-level failures are reported inside the result.
func (c *Client) FeeHistory(ctx context.Context, services RpcServices, cfg *RpcConfig, args FeeHistoryArgs, budget uint64) (MultiFeeHistoryResult, error) {
	providers := resolveProviders(services)
	if len(providers) == 0 {
		return MultiFeeHistoryResult{}, fmt.Errorf("%w for %s", ErrNoProviders, services.Chain)
	}

	urls := make([]string, len(providers))
	for i, p := range providers {
		url, ok := c.opts.Endpoints.Lookup(services.Chain, p)
		if !ok {
			return MultiFeeHistoryResult{}, fmt.Errorf("%w for %s", ErrUnknownProvider, EndpointKey(services.Chain, p))
		}
		urls[i] = url
	}

	consensus := Equality()
	if cfg != nil {
		consensus = cfg.Consensus
	}
	if consensus.Min < 0 || consensus.Min > len(providers) {
		return MultiFeeHistoryResult{}, fmt.Errorf("%w: min %d with %d providers", ErrInvalidConsensus, consensus.Min, len(providers))
	}

	required := c.opts.RequestCost * uint64(len(providers))
	if budget < required {
		return MultiFeeHistoryResult{}, fmt.Errorf("%w: attached %d, required %d", ErrInsufficientBudget, budget, required)
	}
	if c.opts.Quota != nil {
		if err := c.opts.Quota.Charge(required); err != nil {
			return MultiFeeHistoryResult{}, err
		}
	}

	results := make([]ProviderResult, len(providers))
	var g errgroup.Group
	for i := range providers {
		g.Go(func() error {
			results[i] = ProviderResult{
				Provider: providers[i],
				Result:   c.call(ctx, services.Chain, providers[i], urls[i], args),
			}
			return nil
		})
	}
	_ = g.Wait()

	return reduce(results, consensus), nil
}

// reduce 按共识策略合并各来源结果
func reduce(results []ProviderResult, consensus Consensus) MultiFeeHistoryResult {
	order := make([]string, 0, len(results))
	groups := make(map[string][]int)
	for i, r := range results {
		k := r.Result.key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	if consensus.Min == 0 {
		if len(order) == 1 {
			return ConsistentResult(results[0].Result)
		}
		return InconsistentResult(results)
	}

	for _, k := range order {
		if idx := groups[k]; len(idx) >= consensus.Min {
			return ConsistentResult(results[idx[0]].Result)
		}
	}
	return InconsistentResult(results)
}

func (c *Client) call(ctx context.Context, chain Chain, provider Provider, url string, args FeeHistoryArgs) (result FeeHistoryResult) {
	start := time.Now()
	defer func() {
		if c.opts.OnRequest != nil {
			c.opts.OnRequest(chain, provider, time.Since(start), result.Err)
		}
	}()

	if err := c.limiters.Wait(ctx, url); err != nil {
		return FeeHistoryResult{Err: &RpcError{Kind: HttpOutcallError, Message: fmt.Sprintf("rate limiter: %v", err)}}
	}

	conn, err := c.conn(ctx, url)
	if err != nil {
		return FeeHistoryResult{Err: &RpcError{Kind: HttpOutcallError, Message: err.Error()}}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if c.opts.VerifyChainID {
		if err := conn.verify(reqCtx, chain.ChainID()); err != nil {
			return FeeHistoryResult{Err: &RpcError{Kind: ProviderError, Message: err.Error()}}
		}
	}

	percentiles := args.RewardPercentiles
	if percentiles == nil {
		percentiles = []float64{}
	}

	var raw json.RawMessage
	err = conn.rpc.CallContext(reqCtx, &raw, "eth_feeHistory", hexutil.Uint64(args.BlockCount), args.NewestBlock, percentiles)
	if err != nil {
		slog.Debug("fee_history_request_failed", "chain", chain, "provider", provider, "err", err)
		return FeeHistoryResult{Err: classifyError(err)}
	}

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return FeeHistoryResult{}
	}

	history, err := decodeFeeHistory(raw)
	if err != nil {
		return FeeHistoryResult{Err: &RpcError{Kind: ValidationError, Message: err.Error()}}
	}
	return FeeHistoryResult{Ok: history}
}

func classifyError(err error) *RpcError {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &RpcError{Kind: HttpOutcallError, Code: httpErr.StatusCode, Message: httpErr.Status}
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &RpcError{Kind: JsonRpcError, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return &RpcError{Kind: HttpOutcallError, Message: err.Error()}
}

type rawFeeHistory struct {
	OldestBlock  *hexutil.Big     `json:"oldestBlock"`
	Reward       [][]*hexutil.Big `json:"reward,omitempty"`
	BaseFee      []*hexutil.Big   `json:"baseFeePerGas,omitempty"`
	GasUsedRatio []float64        `json:"gasUsedRatio"`
}

func decodeFeeHistory(raw json.RawMessage) (*FeeHistory, error) {
	var res rawFeeHistory
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode fee history: %w", err)
	}

	oldest, err := toUint256((*big.Int)(res.OldestBlock))
	if err != nil {
		return nil, fmt.Errorf("oldestBlock: %w", err)
	}
	out := &FeeHistory{
		OldestBlock:   oldest,
		BaseFeePerGas: make([]*uint256.Int, 0, len(res.BaseFee)),
		GasUsedRatio:  res.GasUsedRatio,
	}
	for i, b := range res.BaseFee {
		v, err := toUint256((*big.Int)(b))
		if err != nil {
			return nil, fmt.Errorf("baseFeePerGas[%d]: %w", i, err)
		}
		out.BaseFeePerGas = append(out.BaseFeePerGas, v)
	}
	for i, row := range res.Reward {
		conv := make([]*uint256.Int, len(row))
		for j, b := range row {
			v, err := toUint256((*big.Int)(b))
			if err != nil {
				return nil, fmt.Errorf("reward[%d][%d]: %w", i, j, err)
			}
			conv[j] = v
		}
		out.Reward = append(out.Reward, conv)
	}
	return out, nil
}

func (c *Client) conn(ctx context.Context, url string) (*providerConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pc, ok := c.conns[url]; ok {
		return pc, nil
	}
	rc, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(c.opts.HTTPClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	pc := &providerConn{rpc: rc, eth: ethclient.NewClient(rc)}
	c.conns[url] = pc
	return pc, nil
}

// Close closes all provider connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, pc := range c.conns {
		pc.rpc.Close()
		delete(c.conns, url)
	}
}
