package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// parseEnv overlays settings from environment variables. Unset and empty
// variables leave the current value untouched.
func parseEnv(config *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	strs := map[string]*string{
		"HTTP_ADDRESS":       &config.HTTPAddress,
		"GRPC_ADDRESS":       &config.GRPCAddress,
		"DATABASE_DSN":       &config.DatabaseDSN,
		"SECRET_KEY":         &config.SecretKey,
		"DATA_SOURCE":        &config.DataSource,
		"HANA_ADDRESS":       &config.HanaAddress,
		"HANA_PORT":          &config.HanaPort,
		"HANA_USER":          &config.HanaUser,
		"HANA_PASSWORD":      &config.HanaPassword,
		"HANA_SCHEMA":        &config.HanaSchema,
		"S3_BUCKET":          &config.S3Bucket,
		"S3_REGION":          &config.S3Region,
		"S3_BASE_ENDPOINT":   &config.S3BaseEndpoint,
		"S3_ROOT_USER":       &config.S3RootUser,
		"S3_ROOT_PASSWORD":   &config.S3RootPassword,
		"S3_PREFIX":          &config.S3Prefix,
		"AMQP_URL":           &config.AMQPURL,
		"AMQP_EXCHANGE":      &config.AMQPExchange,
		"LOG_FORMAT":         &config.LogFormat,
		"BOOTSTRAP_USER":     &config.BootstrapUser,
		"BOOTSTRAP_PASSWORD": &config.BootstrapPassword,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	seconds := map[string]*time.Duration{
		"SESSION_LIFETIME_SECONDS": &config.SessionLifetime,
		"SWEEP_INTERVAL_SECONDS":   &config.SweepInterval,
		"LOGIN_TIMEOUT_SECONDS":    &config.LoginTimeout,
		"LOCKOUT_WINDOW_SECONDS":   &config.LockoutWindow,
	}
	for key, dst := range seconds {
		n, ok, err := envInt(v, key)
		if err != nil {
			return err
		}
		if ok {
			*dst = time.Duration(n) * time.Second
		}
	}

	ints := map[string]*int{
		"HASH_COST_FACTOR":    &config.HashCostFactor,
		"MAX_FAILED_ATTEMPTS": &config.MaxFailedAttempts,
	}
	for key, dst := range ints {
		n, ok, err := envInt(v, key)
		if err != nil {
			return err
		}
		if ok {
			*dst = n
		}
	}

	if v.IsSet("SLIDING_EXPIRATION") {
		b, err := strconv.ParseBool(v.GetString("SLIDING_EXPIRATION"))
		if err != nil {
			return fmt.Errorf("SLIDING_EXPIRATION: %w", err)
		}
		config.SlidingExpiration = b
	}

	return nil
}

func envInt(v *viper.Viper, key string) (int, bool, error) {
	if !v.IsSet(key) {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}
