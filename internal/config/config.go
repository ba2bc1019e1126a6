package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultHeartbeatTimeout = 60 * time.Second
	DefaultRetryAttempts    = 3
	DefaultMessageRate      = 5
	DefaultMessageBurst     = 10
)

type Config struct {
	DatabaseDSN      string
	ServerAddr       string
	SigningKey       []byte
	AllowedOrigins   []string
	HeartbeatTimeout time.Duration
	RetryAttempts    int
	MessageRate      float64
	MessageBurst     int
}

// Params are the raw settings collected from flags, the environment and
// the optional config file.
type Params struct {
	ServerAddr       string   `validate:"required,hostname_port"`
	DatabaseDSN      string   `validate:"required"`
	SigningSecret    string   `validate:"required,base64"`
	AllowedOrigins   []string `validate:"dive,url"`
	HeartbeatTimeout time.Duration
	RetryAttempts    int     `validate:"min=0,max=10"`
	MessageRate      float64 `validate:"min=0"`
	MessageBurst     int     `validate:"min=0"`
}

var validate = validator.New()

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p.HeartbeatTimeout < 0 {
		return nil, fmt.Errorf("heartbeat timeout cannot be negative")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(p.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:      p.DatabaseDSN,
		ServerAddr:       p.ServerAddr,
		SigningKey:       signingKey,
		AllowedOrigins:   p.AllowedOrigins,
		HeartbeatTimeout: p.HeartbeatTimeout,
		RetryAttempts:    p.RetryAttempts,
		MessageRate:      p.MessageRate,
		MessageBurst:     p.MessageBurst,
	}

	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.MessageRate == 0 {
		cfg.MessageRate = DefaultMessageRate
	}
	if cfg.MessageBurst == 0 {
		cfg.MessageBurst = DefaultMessageBurst
	}

	return cfg, nil
}
