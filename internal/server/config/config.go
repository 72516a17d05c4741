// Package config handles configuration for the server component: defaults,
// an optional JSON file, environment variables and command-line flags, applied
// in that order.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/logging"
)

// Data source kinds.
const (
	DataSourceMock = "mock"
	DataSourceHana = "hana"
	DataSourceS3   = "s3"
)

// Config holds runtime settings for the salesdash server.
//
// An empty DatabaseDSN keeps users and sessions in process memory. SecretKey
// signs session cookies; the default is for development only.
type Config struct {
	HTTPAddress string
	GRPCAddress string
	DatabaseDSN string
	SecretKey   string

	SessionLifetime   time.Duration
	SlidingExpiration bool
	HashCostFactor    int
	SweepInterval     time.Duration
	LoginTimeout      time.Duration
	MaxFailedAttempts int
	LockoutWindow     time.Duration

	DataSource   string
	HanaAddress  string
	HanaPort     string
	HanaUser     string
	HanaPassword string
	HanaSchema   string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string
	S3Prefix       string

	AMQPURL      string
	AMQPExchange string

	LogFormat string

	BootstrapUser     string
	BootstrapPassword string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddress = ":8080"
	c.GRPCAddress = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.SessionLifetime = 30 * time.Minute
	c.SlidingExpiration = true
	c.HashCostFactor = 10
	c.SweepInterval = 5 * time.Minute
	c.LoginTimeout = 5 * time.Second
	c.MaxFailedAttempts = 5
	c.LockoutWindow = 15 * time.Minute
	c.DataSource = DataSourceMock
	c.S3Region = "us-east-1"
	c.AMQPExchange = "audit"
	c.LogFormat = logging.FormatJSON
}

// Validate rejects settings the server cannot run with and clamps the hash
// cost into the range bcrypt accepts.
func (c *Config) Validate() error {
	if c.SessionLifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive, got %s", c.SessionLifetime)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("login timeout must be positive, got %s", c.LoginTimeout)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key must not be empty")
	}
	switch c.DataSource {
	case DataSourceMock, DataSourceHana, DataSourceS3:
	default:
		return fmt.Errorf("unknown data source %q", c.DataSource)
	}
	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatText, logging.FormatZap:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if (c.BootstrapUser == "") != (c.BootstrapPassword == "") {
		return fmt.Errorf("bootstrap user and password must be set together")
	}
	c.HashCostFactor = cryptox.ClampCost(c.HashCostFactor)
	return nil
}

// Load builds a Config from defaults, then the JSON file named by -c/-config
// in args, then the environment, then flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
