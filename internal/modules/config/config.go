package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"signal_bot/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// TelegramPollTimeout is how long one getUpdates long poll may hang.
const TelegramPollTimeout = 30 * time.Second

// Config ...
type Config struct {
	Telegram struct {
		Token          string        `yaml:"token"`
		AdminID        int64         `yaml:"admin_id"`
		ChatIDs        []int64       `yaml:"chat_ids"`
		Workers        int           `yaml:"workers"`
		RatePerMinute  int           `yaml:"rate_per_minute"`
		Burst          int           `yaml:"burst"`
		CommandTimeout time.Duration `yaml:"command_timeout"`
		HTTPTimeout    time.Duration `yaml:"http_timeout"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	// Драйвер стора сессий: file или postgres.
	Store struct {
		Driver       string `yaml:"driver"`
		SessionsPath string `yaml:"sessions_path"`
		StatePath    string `yaml:"state_path"`
	} `yaml:"store"`

	// Как хранить ключи бирж: plain, cipher или vault.
	Secrets struct {
		Driver string `yaml:"driver"`
		Key    string `yaml:"key"`
	} `yaml:"secrets"`
	Vault struct {
		Address string `yaml:"address"`
		Token   string `yaml:"token"`
		Mount   string `yaml:"mount"`
		Path    string `yaml:"path"`
	} `yaml:"vault"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Exchange struct {
		Testnet   bool          `yaml:"testnet"`
		Timeout   time.Duration `yaml:"timeout"`
		DataProxy string        `yaml:"data_proxy"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
	} `yaml:"exchange"`

	Runner struct {
		Interval        time.Duration `yaml:"interval"`
		Timeframe       string        `yaml:"timeframe"`
		Limit           int           `yaml:"limit"`
		HTFTimeframe    string        `yaml:"htf_timeframe"`
		HTFLimit        int           `yaml:"htf_limit"`
		HTFCacheTTL     time.Duration `yaml:"htf_cache_ttl"`
		Workers         int           `yaml:"workers"`
		AssetTimeout    time.Duration `yaml:"asset_timeout"`
		DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
		Cooldown        time.Duration `yaml:"cooldown"`
		PriceDeviation  float64       `yaml:"price_deviation"`
	} `yaml:"runner"`

	Groups    map[string][]string `yaml:"groups"`
	TickerMap map[string]string   `yaml:"ticker_map"`
	// Человеческие имена по символу.
	Names map[string]string `yaml:"names"`

	Strategy struct {
		DominanceAsset        string   `yaml:"dominance_asset"`
		GridAssets            []string `yaml:"grid_assets"`
		ScalpingAssets        []string `yaml:"scalping_assets"`
		ScalpingMinVolatility float64  `yaml:"scalping_min_volatility"`
		SpotCombined          bool     `yaml:"spot_combined"`
		HMAPeriod             int      `yaml:"hma_period"`
		ADXStrong             float64  `yaml:"adx_strong"`
		VolumeClimax          float64  `yaml:"volume_climax"`
		SqueezeLookback       int      `yaml:"squeeze_lookback"`
	} `yaml:"strategy"`

	// Дефолты риска для новых сессий.
	Risk struct {
		Leverage          int     `yaml:"leverage"`
		MaxLeverage       int     `yaml:"max_leverage"`
		MaxCapitalPct     float64 `yaml:"max_capital_pct"`
		SpotAllocationPct float64 `yaml:"spot_allocation_pct"`
		StopLossPct       float64 `yaml:"stop_loss_pct"`
		ATRStopMult       float64 `yaml:"atr_stop_mult"`
		TakeProfitRR      float64 `yaml:"take_profit_rr"`
	} `yaml:"risk"`

	Copilot struct {
		ProposalTTL time.Duration `yaml:"proposal_ttl"`
	} `yaml:"copilot"`

	API struct {
		Enabled     bool          `yaml:"enabled"`
		Port        int           `yaml:"port"`
		JWTSecret   string        `yaml:"jwt_secret"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
		CORSOrigins []string      `yaml:"cors_origins"`
	} `yaml:"api"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// Default is the configuration used when the YAML file leaves a field out.
func Default() Config {
	var c Config
	c.Telegram.Workers = 8
	c.Telegram.RatePerMinute = 30
	c.Telegram.Burst = 5
	c.Telegram.CommandTimeout = 30 * time.Second
	c.Telegram.HTTPTimeout = 45 * time.Second
	c.Service.Host = "0.0.0.0"
	c.Service.AdminPort = 8081

	c.Store.Driver = "file"
	c.Store.SessionsPath = "data/sessions.json"
	c.Store.StatePath = "data/bot_state.json"
	c.Secrets.Driver = "plain"
	c.Vault.Mount = "secret"
	c.Vault.Path = "signal_bot/sessions"
	c.Redis.Prefix = "signal_bot:"

	c.Exchange.Timeout = 10 * time.Second
	c.Exchange.CacheTTL = 10 * time.Minute

	c.Runner.Interval = 60 * time.Second
	c.Runner.Timeframe = "15m"
	c.Runner.Limit = 200
	c.Runner.HTFTimeframe = "1h"
	c.Runner.HTFLimit = 200
	c.Runner.HTFCacheTTL = 5 * time.Minute
	c.Runner.Workers = 4
	c.Runner.AssetTimeout = 20 * time.Second
	c.Runner.DispatchTimeout = 30 * time.Second
	c.Runner.Cooldown = time.Hour
	c.Runner.PriceDeviation = 0.008

	c.Groups = map[string][]string{
		models.GroupCrypto:    {"BTCUSDT", "ETHUSDT", "XRPUSDT", "SOLUSDT", "SUIUSDT", "ZECUSDT"},
		models.GroupStocks:    {"TSLA", "NVDA", "MSFT", "AAPL", "AMD"},
		models.GroupCommodity: {"GLD", "USO"},
	}
	c.TickerMap = map[string]string{
		"BTC":  "BTCUSDT",
		"ETH":  "ETHUSDT",
		"XRP":  "XRPUSDT",
		"SOL":  "SOLUSDT",
		"SUI":  "SUIUSDT",
		"ZEC":  "ZECUSDT",
		"GOLD": "GLD",
		"OIL":  "USO",
	}
	c.Names = map[string]string{
		"BTCUSDT": "Bitcoin",
		"ETHUSDT": "Ethereum",
		"XRPUSDT": "Ripple",
		"SOLUSDT": "Solana",
		"SUIUSDT": "Sui",
		"ZECUSDT": "Zcash",
		"TSLA":    "Tesla",
		"NVDA":    "Nvidia",
		"MSFT":    "Microsoft",
		"AAPL":    "Apple",
		"AMD":     "AMD",
		"GLD":     "Gold (ETF)",
		"USO":     "Oil (ETF)",
	}

	c.Strategy.DominanceAsset = "BTCUSDT"
	c.Strategy.ScalpingMinVolatility = 0.6

	c.Risk.Leverage = 5
	c.Risk.MaxLeverage = 125
	c.Risk.MaxCapitalPct = 0.10
	c.Risk.SpotAllocationPct = 0.10
	c.Risk.StopLossPct = 0.02
	c.Risk.ATRStopMult = 1.5
	c.Risk.TakeProfitRR = 2

	c.Copilot.ProposalTTL = 15 * time.Minute
	c.API.Port = 8090
	c.API.TokenTTL = 24 * time.Hour
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	c.Log.Level = "info"
	return c
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	config := Default()

	raw, err := os.ReadFile("configs/" + configFileName)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", configFileName, err)
		}
	case os.IsNotExist(err):
		// деплой только через env
	default:
		return nil, fmt.Errorf("config: open %s: %w", configFileName, err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		c.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		c.DB = dsn
	}
	if v := os.Getenv("TELEGRAM_ADMIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.AdminID = id
		}
	}
	if ids := parseIDs(os.Getenv("TELEGRAM_CHAT_IDS")); len(ids) > 0 {
		c.Telegram.ChatIDs = ids
	}
	c.Store.Driver = getenvDefault("STORE_DRIVER", c.Store.Driver)
	c.Secrets.Driver = getenvDefault("SECRETS_DRIVER", c.Secrets.Driver)
	c.Secrets.Key = getenvDefault("SECRETS_KEY", c.Secrets.Key)
	c.Vault.Address = getenvDefault("VAULT_ADDR", c.Vault.Address)
	c.Vault.Token = getenvDefault("VAULT_TOKEN", c.Vault.Token)
	c.Redis.Addr = getenvDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Enabled = boolFromEnv("REDIS_ENABLED", c.Redis.Enabled)
	c.Exchange.Testnet = boolFromEnv("BINANCE_TESTNET", c.Exchange.Testnet)
	c.Exchange.DataProxy = getenvDefault("DATA_PROXY_URL", c.Exchange.DataProxy)
	c.Runner.Interval = durationFromEnv("LOOP_INTERVAL", c.Runner.Interval.String())
	if v := intFromEnv("SIGNAL_COOLDOWN", 0); v > 0 {
		c.Runner.Cooldown = time.Duration(v) * time.Second
	}
	c.Runner.Workers = intFromEnv("RUNNER_WORKERS", c.Runner.Workers)
	c.Risk.Leverage = intFromEnv("DEFAULT_LEVERAGE", c.Risk.Leverage)
	c.Risk.MaxCapitalPct = floatFromEnv("DEFAULT_MAX_CAPITAL_PCT", c.Risk.MaxCapitalPct)
	c.API.Enabled = boolFromEnv("API_ENABLED", c.API.Enabled)
	c.API.JWTSecret = getenvDefault("API_JWT_SECRET", c.API.JWTSecret)
	c.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", c.Tracing.Enabled)
	c.Log.Level = getenvDefault("LOG_LEVEL", c.Log.Level)
}

// Validate rejects settings the runtime cannot work with.
func (c *Config) Validate() error {
	var problems []string
	if c.Runner.Interval <= 0 {
		problems = append(problems, "runner.interval must be positive")
	}
	if c.Runner.Limit < 2 {
		problems = append(problems, "runner.limit must be at least 2")
	}
	if c.Runner.Workers < 1 {
		problems = append(problems, "runner.workers must be at least 1")
	}
	if c.Telegram.HTTPTimeout <= TelegramPollTimeout {
		problems = append(problems, fmt.Sprintf("telegram.http_timeout must exceed the %v long poll", TelegramPollTimeout))
	}
	if c.Risk.Leverage < 1 || (c.Risk.MaxLeverage > 0 && c.Risk.Leverage > c.Risk.MaxLeverage) {
		problems = append(problems, "risk.leverage out of range")
	}
	if c.Risk.MaxCapitalPct <= 0 || c.Risk.MaxCapitalPct > 1 {
		problems = append(problems, "risk.max_capital_pct must be in (0,1]")
	}
	if c.Risk.SpotAllocationPct < 0 || c.Risk.SpotAllocationPct > 1 {
		problems = append(problems, "risk.spot_allocation_pct must be in [0,1]")
	}
	switch c.Store.Driver {
	case "file", "postgres":
	default:
		problems = append(problems, "store.driver must be file or postgres")
	}
	if c.Store.Driver == "postgres" && c.DB == "" {
		problems = append(problems, "db_dsn is required for the postgres store")
	}
	switch c.Secrets.Driver {
	case "plain", "cipher", "vault":
	default:
		problems = append(problems, "secrets.driver must be plain, cipher or vault")
	}
	if c.Secrets.Driver == "cipher" && c.Secrets.Key == "" {
		problems = append(problems, "secrets.key is required for the cipher driver")
	}
	if c.API.Enabled && c.API.JWTSecret == "" {
		problems = append(problems, "api.jwt_secret is required when the api is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfigValidation, strings.Join(problems, "; "))
	}
	return nil
}

// GroupNames returns the configured asset groups in a stable order.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Universe is every configured asset, grouped order first.
func (c *Config) Universe() []string {
	var out []string
	for _, g := range c.GroupNames() {
		out = append(out, c.Groups[g]...)
	}
	return out
}

// ResolveSymbol maps user input to a tradable symbol: a known symbol stays
// as is, a friendly name goes through the ticker map, anything else gets the
// USDT quote appended.
func (c *Config) ResolveSymbol(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return s
	}
	for _, asset := range c.Universe() {
		if asset == s {
			return s
		}
	}
	if mapped, ok := c.TickerMap[s]; ok {
		return mapped
	}
	for symbol, name := range c.Names {
		if strings.ToUpper(name) == s {
			return symbol
		}
	}
	if strings.HasSuffix(s, "USDT") {
		return s
	}
	return s + "USDT"
}

// DisplayName is the friendly name of a symbol.
func (c *Config) DisplayName(symbol string) string {
	if n, ok := c.Names[symbol]; ok && n != "" {
		return n
	}
	return symbol
}

// GroupOf returns the group an asset belongs to.
func (c *Config) GroupOf(asset string) (string, bool) {
	for _, g := range c.GroupNames() {
		for _, a := range c.Groups[g] {
			if a == asset {
				return g, true
			}
		}
	}
	return "", false
}

func parseIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
