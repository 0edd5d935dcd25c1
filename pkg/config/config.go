package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Share     ShareConfig     `mapstructure:"share"`
	Storage   StorageConfig   `mapstructure:"storage"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Messaging MessagingConfig `mapstructure:"messaging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Production bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	// mysql | sqlite | memory
	Driver       string `mapstructure:"driver" validate:"oneof=mysql sqlite memory"`
	DSN          string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required,min=16"`
	Expiration time.Duration `mapstructure:"expiration" validate:"gt=0"`
}

// ShareConfig 分享与公开链接相关配置
type ShareConfig struct {
	AllowedRoots  []string `mapstructure:"allowed_roots" validate:"min=1,dive,startswith=/"`
	TokenLength   int      `mapstructure:"token_length" validate:"gte=16,lte=64"`
	PasswordCost  int      `mapstructure:"password_cost" validate:"gte=4,lte=31"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
}

type StorageConfig struct {
	BasePath string `mapstructure:"base_path" validate:"required"`
}

type WebSocketConfig struct {
	SendBufferSize int `mapstructure:"send_buffer_size" validate:"gte=0"`

	WriteWaitSeconds int `mapstructure:"write_wait_seconds" validate:"gte=0"`
	PongWaitSeconds  int `mapstructure:"pong_wait_seconds" validate:"gte=0"`
	MaxMessageSize   int `mapstructure:"max_message_size" validate:"gte=0"`
	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count" validate:"gte=0"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms" validate:"gte=0"`
}

type MessagingConfig struct {
	// none | kafka
	Provider string      `mapstructure:"provider" validate:"oneof=none kafka"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
	// 每个实例用不同的消费组，才能都收到通知并投递给本地连接
	ConsumerGroup string `mapstructure:"consumer_group"`
}

var GlobalConfig Config

// Init 读取配置文件并写入 GlobalConfig
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	GlobalConfig = *cfg
	return nil
}

// Load 读取配置：文件(可选) -> 环境变量(SHARE_ 前缀) -> 默认值 -> 校验
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AutomaticEnv 只对 viper 已知的键生效，这里显式注册
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.addr", "server.mode", "server.shutdown_timeout",
		"log.level", "log.production",
		"database.driver", "database.dsn", "database.max_open_conns",
		"jwt.secret", "jwt.expiration",
		"share.token_length", "share.password_cost", "share.public_base_url",
		"storage.base_path",
		"messaging.provider", "messaging.kafka.topic_prefix", "messaging.kafka.client_id",
		"messaging.kafka.consumer_group",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
