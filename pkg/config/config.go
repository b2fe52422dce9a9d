package config

import "time"

// Console definition console_service YAML structure
type Console struct {
	Port     string         `mapstructure:"port"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Roster   RosterConfig   `mapstructure:"roster"`
	CRM      CRMConfig      `mapstructure:"crm"`
}

// UpstreamConfig definition external chat backend endpoints
type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SocketURL     string        `mapstructure:"socket_url"`
	ServiceToken  string        `mapstructure:"service_token"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// RosterConfig definition conversation list reconcile setting
type RosterConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// CRMConfig definition crm backend endpoint
type CRMConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}
