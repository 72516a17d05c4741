package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/flagx"
)

// parseFlags overlays settings from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN; empty keeps state in memory
//	-s string   session cookie signing key
//	-t int      session lifetime, seconds
//	-x bool     sliding expiration; disable with -x=false
//	-k int      bcrypt cost factor
//	-w int      sweep interval, seconds
//	-m string   data source: mock, hana or s3
//	-l string   log format: json, text or zap
//
// Flags owned by other components (such as -c) are skipped by
// flagx.ParseOwn rather than failing the parse.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddress, "a", config.HTTPAddress, "HTTP address and port")
	fs.StringVar(&config.GRPCAddress, "g", config.GRPCAddress, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	lifetime := fs.Int("t", int(config.SessionLifetime.Seconds()), "session lifetime (in seconds)")
	fs.BoolVar(&config.SlidingExpiration, "x", config.SlidingExpiration, "sliding expiration")
	fs.IntVar(&config.HashCostFactor, "k", config.HashCostFactor, "bcrypt cost factor")
	sweep := fs.Int("w", int(config.SweepInterval.Seconds()), "sweep interval (in seconds)")

	fs.StringVar(&config.DataSource, "m", config.DataSource, "data source (mock, hana, s3)")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (json, text, zap)")

	if err := flagx.ParseOwn(fs, args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionLifetime = time.Duration(*lifetime) * time.Second
		case "w":
			config.SweepInterval = time.Duration(*sweep) * time.Second
		}
	})
	return nil
}
