package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
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
	JoinResult   string `mapstructure:"join_result"`
	RefundResult string `mapstructure:"refund_result"`
}

type BusinessConfig struct {
	// WalletRetryCount 钱包乐观锁冲突时的最大重试次数，超过后返回并发冲突错误
	WalletRetryCount int `mapstructure:"wallet_retry_count"`
	// MaxRetryCount outbox 消息发送的最大重试次数
	MaxRetryCount int `mapstructure:"max_retry_count"`
	// IncomeReleaseIntervalSeconds 活动收入解冻任务的轮询间隔（秒）
	IncomeReleaseIntervalSeconds int `mapstructure:"income_release_interval_seconds"`
	// CommissionUserID 平台佣金账户的用户ID（系统保留账户）
	CommissionUserID int64 `mapstructure:"commission_user_id"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
