package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Reserve    ReserveConfig    `mapstructure:"reserve"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Commission CommissionConfig `mapstructure:"commission"`
	Membership MembershipConfig `mapstructure:"membership"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ChainConfig bounds the scan window. Chunk sizes exist because RPC providers
// cap the number of topics and the block span of a single eth_getLogs filter.
type ChainConfig struct {
	Name             string        `mapstructure:"name"` // e.g. "polygon"
	RpcUrl           string        `mapstructure:"rpc_url"`
	TokenContract    string        `mapstructure:"token_contract"` // USDT contract address
	TokenDecimals    int           `mapstructure:"token_decimals"`
	Confirmations    uint64        `mapstructure:"confirmations"`
	MaxBlocksPerScan uint64        `mapstructure:"max_blocks_per_scan"`
	BlockChunkSize   uint64        `mapstructure:"block_chunk_size"`
	AddressChunkSize int           `mapstructure:"address_chunk_size"`
	FallbackWindow   uint64        `mapstructure:"fallback_window"` // first scan without a cursor looks back this far
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

type ReserveConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SweepConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	CapDelay          time.Duration `mapstructure:"cap_delay"`
	RecordRetries     int           `mapstructure:"record_retries"` // local DB retries after a successful sweep call
}

type WalletConfig struct {
	// AccountXpub is the extended public key deposit addresses derive from.
	// The service never holds private keys; custody lives in the reserve service.
	AccountXpub string `mapstructure:"account_xpub"`
	// Mnemonic is a development fallback used to derive the xpub when unset.
	Mnemonic string `mapstructure:"mnemonic"`
}

type CommissionConfig struct {
	SponsorPercent int `mapstructure:"sponsor_percent"` // level 1
	NetworkPercent int `mapstructure:"network_percent"` // levels 2..max_depth
	MaxDepth       int `mapstructure:"max_depth"`
}

type PlanConfig struct {
	Tier           string `mapstructure:"tier"`
	AmountUsdCents int64  `mapstructure:"amount_usd_cents"`
	DurationDays   int    `mapstructure:"duration_days"` // 0 means lifetime
}

type MembershipConfig struct {
	Plans            []PlanConfig  `mapstructure:"plans"`
	CompressionGrace time.Duration `mapstructure:"compression_grace"`
}

// Plan returns the plan for a tier, or false if the tier is unknown.
func (m MembershipConfig) Plan(tier string) (PlanConfig, bool) {
	for _, p := range m.Plans {
		if p.Tier == tier {
			return p, true
		}
	}
	return PlanConfig{}, false
}

// Load reads config.yaml plus environment overrides into a Config.
// The result is passed by reference into each component; nothing reads
// configuration lazily at call time.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Membership.Plans) == 0 {
		cfg.Membership.Plans = defaultPlans()
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "member_user")
	viper.SetDefault("db.password", "member_password")
	viper.SetDefault("db.name", "member_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.name", "polygon")
	viper.SetDefault("chain.token_decimals", 6)
	viper.SetDefault("chain.confirmations", 12)
	viper.SetDefault("chain.max_blocks_per_scan", 5000)
	viper.SetDefault("chain.block_chunk_size", 1000)
	viper.SetDefault("chain.address_chunk_size", 20)
	viper.SetDefault("chain.fallback_window", 5000)
	viper.SetDefault("chain.request_timeout", "15s")

	viper.SetDefault("reserve.timeout", "30s")

	viper.SetDefault("sweep.batch_size", 10)
	viper.SetDefault("sweep.max_retries", 3)
	viper.SetDefault("sweep.base_delay", "30s")
	viper.SetDefault("sweep.backoff_multiplier", 2.0)
	viper.SetDefault("sweep.cap_delay", "1h")
	viper.SetDefault("sweep.record_retries", 3)

	viper.SetDefault("commission.sponsor_percent", 10)
	viper.SetDefault("commission.network_percent", 2)
	viper.SetDefault("commission.max_depth", 5)

	viper.SetDefault("membership.compression_grace", "2160h") // 90 days
}

func defaultPlans() []PlanConfig {
	return []PlanConfig{
		{Tier: "basic", AmountUsdCents: 2900, DurationDays: 30},
		{Tier: "premium", AmountUsdCents: 19900, DurationDays: 365},
		{Tier: "lifetime", AmountUsdCents: 99900, DurationDays: 0},
	}
}
