package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

// 预定义的网络 ID（常量）
const (
	MainnetChainID  = 1
	OptimismChainID = 10
	BaseChainID     = 8453
	ArbitrumChainID = 42161
	SepoliaChainID  = 11155111
)

// Name 返回 Chain ID 对应的网络名称
func Name(chainID int64) string {
	switch chainID {
	case MainnetChainID:
		return "Ethereum Mainnet"
	case SepoliaChainID:
		return "Sepolia Testnet"
	case OptimismChainID:
		return "OP Mainnet"
	case BaseChainID:
		return "Base Mainnet"
	case ArbitrumChainID:
		return "Arbitrum One"
	default:
		return fmt.Sprintf("Unknown Network (Chain ID: %d)", chainID)
	}
}

// ErrNetworkMismatch provider 返回的 Chain ID 与预期不同
var ErrNetworkMismatch = errors.New("network mismatch")

// ChainIDReader is satisfied by *ethclient.Client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// VerifyNetwork 校验 provider 返回的 Chain ID
// 如果与预期不符或获取失败，返回 error
func VerifyNetwork(ctx context.Context, client ChainIDReader, expectedChainID int64) error {
	actualChainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}

	if actualChainID.Cmp(big.NewInt(expectedChainID)) != 0 {
		slog.Error("🛑 provider serves a different network",
			"expected", fmt.Sprintf("%s (ID: %d)", Name(expectedChainID), expectedChainID),
			"actual", fmt.Sprintf("%s (ID: %s)", Name(actualChainID.Int64()), actualChainID),
		)
		return fmt.Errorf("%w: expected %d, got %s", ErrNetworkMismatch, expectedChainID, actualChainID)
	}

	slog.Debug("network_verified", "network", Name(expectedChainID), "chain_id", expectedChainID)
	return nil
}
