package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBName         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConn     int           `mapstructure:"MAX_OPEN_CONN"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// Admin maps bearer tokens to allow-listed operator identities.
	Admin struct {
		Tokens map[string]string `mapstructure:"TOKENS"`
	} `mapstructure:"ADMIN"`
	Notifier struct {
		Enable   bool   `mapstructure:"ENABLE"`
		BaseURL  string `mapstructure:"BASE_URL"`
		BotToken string `mapstructure:"BOT_TOKEN"`
		ChatID   int64  `mapstructure:"CHAT_ID"`
	} `mapstructure:"NOTIFIER"`
	Otel struct {
		Enable   bool   `mapstructure:"ENABLE"`
		Endpoint string `mapstructure:"ENDPOINT"`
	} `mapstructure:"OTEL"`
	Metrics struct {
		Enable bool   `mapstructure:"ENABLE"`
		Port   uint32 `mapstructure:"PORT"`
	} `mapstructure:"METRICS"`
	Pyroscope struct {
		Enable bool   `mapstructure:"ENABLE"`
		Addr   string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Rewards RewardsConfig `mapstructure:"REWARDS"`
}

// RewardsConfig carries the points-economy tuning knobs.
type RewardsConfig struct {
	// ReconcileThreshold is the tolerated gap, in points, between the cached
	// balance and the ledger sum before a discrepancy is flagged.
	ReconcileThreshold int64 `mapstructure:"RECONCILE_THRESHOLD"`
	// ActivationExpiryDays is how long an activation code stays valid after a
	// request is completed.
	ActivationExpiryDays int `mapstructure:"ACTIVATION_EXPIRY_DAYS"`
	// QuizDailyQuota caps quiz completions per account per UTC day. 0 means
	// unlimited.
	QuizDailyQuota int `mapstructure:"QUIZ_DAILY_QUOTA"`
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.DBName, c.Database.SSLMode, c.Database.Timezone)
}

// Validate fails fast on configuration that would only blow up at request
// time: an empty admin allow-list or a notifier enabled without credentials.
func (c *Config) Validate() error {
	if len(c.Admin.Tokens) == 0 {
		return fmt.Errorf("admin token allow-list is empty")
	}
	for token, identity := range c.Admin.Tokens {
		if strings.TrimSpace(token) == "" || strings.TrimSpace(identity) == "" {
			return fmt.Errorf("admin allow-list contains an empty token or identity")
		}
	}

	if c.Notifier.Enable {
		if c.Notifier.BotToken == "" {
			return fmt.Errorf("notifier enabled but NOTIFIER_BOT_TOKEN is not set")
		}
		if c.Notifier.ChatID == 0 {
			return fmt.Errorf("notifier enabled but NOTIFIER_CHAT_ID is not set")
		}
	}

	if c.Rewards.ReconcileThreshold < 0 {
		return fmt.Errorf("REWARDS_RECONCILE_THRESHOLD must not be negative")
	}

	return nil
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("METRICS.PORT", 9090)
	v.SetDefault("REWARDS.RECONCILE_THRESHOLD", 10)
	v.SetDefault("REWARDS.ACTIVATION_EXPIRY_DAYS", 30)
	v.SetDefault("REWARDS.QUIZ_DAILY_QUOTA", 10)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
