package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Etcd        EtcdConfig        `mapstructure:"etcd"`
	Source      SourceConfig      `mapstructure:"source"`
	Destination DestinationConfig `mapstructure:"destination"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// SourceConfig holds credentials for the order-originating system.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// DestinationConfig holds credentials for the downstream system.
type DestinationConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type SyncConfig struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	RetryBatchSize     int           `mapstructure:"retry_batch_size"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	StatusSyncInterval time.Duration `mapstructure:"status_sync_interval"`
	StatusPageSize     int           `mapstructure:"status_page_size"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.environment", "dev")
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("ratelimit.requests_per_second", 5)
	viper.SetDefault("sync.max_retries", 5)
	viper.SetDefault("sync.retry_interval", 5*time.Minute)
	viper.SetDefault("sync.retry_batch_size", 20)
	viper.SetDefault("sync.cooldown", 5*time.Minute)
	viper.SetDefault("sync.http_timeout", 15*time.Second)
	viper.SetDefault("sync.status_sync_interval", 5*time.Minute)
	viper.SetDefault("sync.status_page_size", 50)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}
