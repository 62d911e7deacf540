package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/uhyunpark/hypersigner/pkg/exchange"
)

// BuilderAddressPlaceholder ships in the sample env file. A recipient
// left at this value means builder fees stay disabled.
const BuilderAddressPlaceholder = "0x...your_builder_wallet_address"

// Config holds everything resolved at process start. Immutable once
// loaded; every component receives it by value.
type Config struct {
	// APIURL is the venue base URL
	APIURL string
	// TradingAsset is the configured asset, optionally namespaced as
	// "<dex>:<symbol>" for builder-deployed perps
	TradingAsset string
	// PerpDex is the namespace derived from TradingAsset, "" when the
	// asset lives on the default dex
	PerpDex string
	// SignerAPIKey gates every /l1 route when set. Empty disables auth:
	// that is a deployment choice, not an oversight.
	SignerAPIKey string
	// BuilderAddress receives the builder fee share when set to a real
	// address
	BuilderAddress string
	// BuilderFeeTenthsBps is the fee in tenths of a basis point
	// (100 = 10bp = 0.1%, the venue's cap for perp builder fees)
	BuilderFeeTenthsBps int
	// Listen is the HTTP bind address
	Listen string
}

// ParseDex extracts the dex namespace from an asset string:
// "xyz:GOLD" -> "xyz", "BTC" -> ""
func ParseDex(asset string) string {
	if i := strings.Index(asset, ":"); i >= 0 {
		return asset[:i]
	}
	return ""
}

func Default() Config {
	return Config{
		APIURL:              exchange.MainnetAPIURL,
		TradingAsset:        "xyz:GOLD",
		BuilderFeeTenthsBps: 100,
		Listen:              ":8080",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg := Default()
	cfg.APIURL = getEnv("HYPERLIQUID_API_URL", cfg.APIURL)
	cfg.TradingAsset = getEnv("TRADING_ASSET", cfg.TradingAsset)
	cfg.SignerAPIKey = os.Getenv("SIGNER_API_KEY")
	cfg.BuilderAddress = os.Getenv("BUILDER_ADDRESS")
	cfg.Listen = getEnv("LISTEN", cfg.Listen)

	if v := os.Getenv("BUILDER_FEE_BPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BuilderFeeTenthsBps = n
		}
	}

	cfg.PerpDex = ParseDex(cfg.TradingAsset)
	return cfg
}

// Builder returns the builder fee config when a real recipient is set,
// nil otherwise. Called fresh on every order-placing request.
func (c Config) Builder() *exchange.BuilderInfo {
	if c.BuilderAddress == "" || c.BuilderAddress == BuilderAddressPlaceholder {
		return nil
	}
	return &exchange.BuilderInfo{
		Builder: strings.ToLower(c.BuilderAddress),
		Fee:     c.BuilderFeeTenthsBps,
	}
}

// PerpDexs returns the routing list handed to each signing client: the
// default namespace plus the configured dex, or nil for default-only
// routing when no dex was derived.
func (c Config) PerpDexs() []string {
	if c.PerpDex == "" {
		return nil
	}
	return []string{"", c.PerpDex}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
