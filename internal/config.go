package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	DebugPort         int           `env:"DEBUG_PORT,default=0"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JwtSecretKey      string        `env:"JWT_SECRET_KEY,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	ResolverTimeout time.Duration `env:"RESOLVER_TIMEOUT,default=3s"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	ReplyTimeout    time.Duration `env:"REPLY_TIMEOUT,default=2s"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitInterval    time.Duration `env:"RATE_LIMIT_INTERVAL,default=1s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func (c Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case len(c.JwtSecretKey) < 32:
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes, got %d", len(c.JwtSecretKey))
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	case c.RateLimitBurst <= 0:
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	durations := []struct {
		key   string
		value time.Duration
	}{
		{"RESOLVER_TIMEOUT", c.ResolverTimeout},
		{"STORE_TIMEOUT", c.StoreTimeout},
		{"SINK_TIMEOUT", c.SinkTimeout},
		{"REPLY_TIMEOUT", c.ReplyTimeout},
		{"RATE_LIMIT_INTERVAL", c.RateLimitInterval},
		{"METRIC_INTERVAL", c.MetricInterval},
		{"RESTART_INTERVAL", c.RestartInterval},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}
	return nil
}
