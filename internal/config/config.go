package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"payledger/internal/ledger"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"` // 流水号实例号，多实例部署时各不相同
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentReceived string `mapstructure:"payment_received"`
	Withdrawal      string `mapstructure:"withdrawal"`
}

// TopicFor 事件名 -> topic
func (c KafkaTopicConfig) TopicFor(eventName string) string {
	switch eventName {
	case ledger.EventWithdrawal:
		return c.Withdrawal
	default:
		return c.PaymentReceived
	}
}

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type LedgerConfig struct {
	Address  string `mapstructure:"address"`  // 账本自身地址（持有余额记在该地址上）
	Owner    string `mapstructure:"owner"`    // 首次部署时写入，之后以库中为准
	Store    string `mapstructure:"store"`    // mysql | memory
	Decimals int32  `mapstructure:"decimals"` // 展示金额用的小数位
}

type BusinessConfig struct {
	MaxRetryCount          int  `mapstructure:"max_retry_count"`
	FaucetEnabled          bool `mapstructure:"faucet_enabled"`
	ReconcileIntervalSec   int  `mapstructure:"reconcile_interval_seconds"`
	InvokeLockRetryMillis  int  `mapstructure:"invoke_lock_retry_millis"`
	InvokeLockMaxRetries   int  `mapstructure:"invoke_lock_max_retries"`
	PaymentCacheTTLMinutes int  `mapstructure:"payment_cache_ttl_minutes"`
	NonceTTLMinutes        int  `mapstructure:"nonce_ttl_minutes"`
}

func (b BusinessConfig) ReconcileInterval() time.Duration {
	return time.Duration(b.ReconcileIntervalSec) * time.Second
}

func (b BusinessConfig) InvokeLockRetry() time.Duration {
	return time.Duration(b.InvokeLockRetryMillis) * time.Millisecond
}

func (b BusinessConfig) PaymentCacheTTL() time.Duration {
	return time.Duration(b.PaymentCacheTTLMinutes) * time.Minute
}

func (b BusinessConfig) NonceTTL() time.Duration {
	return time.Duration(b.NonceTTLMinutes) * time.Minute
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)
	v.SetDefault("ledger.store", StoreMySQL)
	v.SetDefault("ledger.decimals", 18)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.reconcile_interval_seconds", 60)
	v.SetDefault("business.invoke_lock_retry_millis", 50)
	v.SetDefault("business.invoke_lock_max_retries", 100)
	v.SetDefault("business.payment_cache_ttl_minutes", 60)
	v.SetDefault("business.nonce_ttl_minutes", 10)
}

// Load 读取配置文件，PAYLEDGER_ 前缀的环境变量可覆盖同名配置项
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("payledger")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return config, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	config, err := Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	GlobalConfig = config
	return config
}
