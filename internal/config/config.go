package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	// ProviderID preseeds the local party identity (dev mode). When
	// empty the identity arrives via the control surface after
	// authentication.
	ProviderID string `mapstructure:"provider_id"`

	AuthorityURL      string `mapstructure:"authority_url"`
	SignalingURL      string `mapstructure:"signaling_url"`
	SignalingWSURL    string `mapstructure:"signaling_ws_url"`
	MediaGatewayWSURL string `mapstructure:"media_gateway_ws_url"`

	RemoteCallTimeout time.Duration `mapstructure:"remote_call_timeout"`
	IdentityWait      time.Duration `mapstructure:"identity_wait"`

	CallLogPath    string  `mapstructure:"call_log_path"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("provider_id", "")
	v.SetDefault("authority_url", "http://localhost:9090")
	v.SetDefault("signaling_url", "http://localhost:9091")
	v.SetDefault("signaling_ws_url", "ws://localhost:9091")
	v.SetDefault("media_gateway_ws_url", "ws://localhost:9092/session")
	v.SetDefault("remote_call_timeout", "15s")
	v.SetDefault("identity_wait", "1m")
	v.SetDefault("call_log_path", "callhost.db")
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}
