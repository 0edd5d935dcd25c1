package config

import (
	"strings"
	"time"
)

// ApplyDefaults 为未设置的字段填充默认值，显式配置的值保持不变
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}

	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}

	if len(cfg.Share.AllowedRoots) == 0 {
		cfg.Share.AllowedRoots = []string{"/home", "/shared"}
	}
	if cfg.Share.TokenLength == 0 {
		cfg.Share.TokenLength = 32
	}
	if cfg.Share.PasswordCost == 0 {
		cfg.Share.PasswordCost = 10
	}
	cfg.Share.PublicBaseURL = strings.TrimSuffix(cfg.Share.PublicBaseURL, "/")

	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "uploads"
	}

	applyWebSocketDefaults(&cfg.WebSocket)

	cfg.Messaging.Provider = strings.ToLower(cfg.Messaging.Provider)
	if cfg.Messaging.Provider == "" {
		cfg.Messaging.Provider = "none"
	}
	if cfg.Messaging.Kafka.TopicPrefix == "" {
		cfg.Messaging.Kafka.TopicPrefix = "share_portal"
	}
	if cfg.Messaging.Kafka.ClientID == "" {
		cfg.Messaging.Kafka.ClientID = "share-portal"
	}
	if cfg.Messaging.Kafka.ConsumerGroup == "" {
		cfg.Messaging.Kafka.ConsumerGroup = cfg.Messaging.Kafka.ClientID + "-notify"
	}
}

func applyWebSocketDefaults(cfg *WebSocketConfig) {
	if cfg.SendBufferSize == 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.WriteWaitSeconds == 0 {
		cfg.WriteWaitSeconds = 10
	}
	if cfg.PongWaitSeconds == 0 {
		cfg.PongWaitSeconds = 60
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 512
	}
	if cfg.MessageRetryCount == 0 {
		cfg.MessageRetryCount = 3
	}
	if cfg.MessageRetryIntervalMs == 0 {
		cfg.MessageRetryIntervalMs = 100
	}
}
