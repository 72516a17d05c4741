package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/salesdash/internal/flagx"
	"github.com/dmitrijs2005/salesdash/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// "30m" style strings or numbers of seconds. Absent keys leave the current
// value untouched.
type JsonConfig struct {
	HTTPAddress       string         `json:"http_address"`
	GRPCAddress       string         `json:"grpc_address"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	SessionLifetime   timex.Duration `json:"session_lifetime"`
	SlidingExpiration *bool          `json:"sliding_expiration"`
	HashCostFactor    int            `json:"hash_cost_factor"`
	SweepInterval     timex.Duration `json:"sweep_interval"`
	LoginTimeout      timex.Duration `json:"login_timeout"`
	MaxFailedAttempts *int           `json:"max_failed_attempts"`
	LockoutWindow     timex.Duration `json:"lockout_window"`
	DataSource        string         `json:"data_source"`
	HanaAddress       string         `json:"hana_address"`
	HanaPort          string         `json:"hana_port"`
	HanaUser          string         `json:"hana_user"`
	HanaPassword      string         `json:"hana_password"`
	HanaSchema        string         `json:"hana_schema"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Prefix          string         `json:"s3_prefix"`
	AMQPURL           string         `json:"amqp_url"`
	AMQPExchange      string         `json:"amqp_exchange"`
	LogFormat         string         `json:"log_format"`
	BootstrapUser     string         `json:"bootstrap_user"`
	BootstrapPassword string         `json:"bootstrap_password"`
}

// parseJson overlays the JSON file named by -c/-config in args, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddress, c.HTTPAddress)
	setString(&config.GRPCAddress, c.GRPCAddress)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.DataSource, c.DataSource)
	setString(&config.HanaAddress, c.HanaAddress)
	setString(&config.HanaPort, c.HanaPort)
	setString(&config.HanaUser, c.HanaUser)
	setString(&config.HanaPassword, c.HanaPassword)
	setString(&config.HanaSchema, c.HanaSchema)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.AMQPExchange, c.AMQPExchange)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.BootstrapUser, c.BootstrapUser)
	setString(&config.BootstrapPassword, c.BootstrapPassword)

	if c.SessionLifetime.Duration != 0 {
		config.SessionLifetime = c.SessionLifetime.Duration
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.LoginTimeout.Duration != 0 {
		config.LoginTimeout = c.LoginTimeout.Duration
	}
	if c.LockoutWindow.Duration != 0 {
		config.LockoutWindow = c.LockoutWindow.Duration
	}
	if c.HashCostFactor != 0 {
		config.HashCostFactor = c.HashCostFactor
	}
	if c.SlidingExpiration != nil {
		config.SlidingExpiration = *c.SlidingExpiration
	}
	if c.MaxFailedAttempts != nil {
		config.MaxFailedAttempts = *c.MaxFailedAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
