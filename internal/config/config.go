package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	StaggerInterval time.Duration // 相邻探测之间的固定间隔
	BlockCount      uint64
	NewestBlock     string // latest / safe / finalized / pending / earliest / 十进制块号
	CostBudget      uint64 // 每次探测附带的预算
	RequestCost     uint64 // 每个 provider 请求的单价
	DailyCostQuota  uint64 // 0 表示不限额
	LogCapacity     int    // 0 表示不淘汰
	ValidationMode  string // strict / lenient
	ConsensusMin    int    // 0 表示所有 provider 必须一致，否则至少 N 个一致

	RPCTimeout       time.Duration
	RPCRateLimit     int
	RPCVerifyChainID bool
	AlchemyAPIKey    string
	AnkrAPIKey       string
	RPCURLOverrides  map[string]string // "chain:provider" -> url

	Port          string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string // 可选：Postgres 归档
	RecordingPath string // 可选：lz4 录制文件
}

func Load() *Config {
	_ = godotenv.Load() // .env文件是可选的

	return &Config{
		StaggerInterval: time.Duration(getEnvAsInt64("PROBE_STAGGER_SECONDS", 10)) * time.Second,
		BlockCount:      getEnvAsUint64("PROBE_BLOCK_COUNT", 4),
		NewestBlock:     getEnv("PROBE_NEWEST_BLOCK", "latest"),
		CostBudget:      getEnvAsUint64("PROBE_COST_BUDGET", 30_000_000_000),
		RequestCost:     getEnvAsUint64("PROBE_REQUEST_COST", 1_000_000_000),
		DailyCostQuota:  getEnvAsUint64("DAILY_COST_QUOTA", 0),
		LogCapacity:     int(getEnvAsInt64("LOG_CAPACITY", 1000)),
		ValidationMode:  strings.ToLower(getEnv("VALIDATION_MODE", "strict")),
		ConsensusMin:    int(getEnvAsInt64("PROBE_CONSENSUS_MIN", 0)),

		RPCTimeout:       time.Duration(getEnvAsInt64("RPC_TIMEOUT_SECONDS", 10)) * time.Second,
		RPCRateLimit:     int(getEnvAsInt64("RPC_RATE_LIMIT", 3)),
		RPCVerifyChainID: getEnvAsBool("RPC_VERIFY_CHAIN_ID", false),
		AlchemyAPIKey:    getEnv("ALCHEMY_API_KEY", ""),
		AnkrAPIKey:       getEnv("ANKR_API_KEY", ""),
		RPCURLOverrides:  parseOverrides(getEnv("RPC_URL_OVERRIDES", "")),

		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RecordingPath: getEnv("RECORDING_PATH", ""),
	}
}

// parseOverrides 解析 "EthMainnet:Alchemy=https://...,BaseMainnet:Ankr=https://..."
func parseOverrides(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, url, ok := strings.Cut(pair, "=")
		if !ok || !strings.Contains(key, ":") {
			log.Printf("Invalid RPC_URL_OVERRIDES entry: %q, ignoring", pair)
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(url)
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s: %s, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(strings.ReplaceAll(valueStr, "_", ""), 10, 64)
	if err != nil {
		log.Printf("Invalid %s: %s, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s: %s, using default %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
