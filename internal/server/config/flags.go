package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      token lifetime, minutes
//	-m int      failed attempts before lockout
//	-l int      lock duration, minutes
//	-i int      PBKDF2 iterations
//	-w int      session sweep interval, minutes
//	-r float    login requests per second per client IP
//	-b int      login burst per client IP
//	-v string   log level (debug, info, warn, error)
//
// os.Args is first filtered to the flags listed here so the -c and -env
// flags read elsewhere do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-m", "-l", "-i", "-w", "-r", "-b", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenLifetime := fs.Int("t", int(config.TokenLifetime.Minutes()), "token lifetime (in minutes)")
	fs.IntVar(&config.MaxFailedAttempts, "m", config.MaxFailedAttempts, "failed attempts before lockout")
	lockDuration := fs.Int("l", int(config.LockDuration.Minutes()), "lock duration (in minutes)")
	fs.IntVar(&config.PasswordIterations, "i", config.PasswordIterations, "PBKDF2 iterations")
	sweepInterval := fs.Int("w", int(config.SessionSweepInterval.Minutes()), "session sweep interval (in minutes)")

	fs.Float64Var(&config.LoginRateLimitRPS, "r", config.LoginRateLimitRPS, "login requests per second per client")
	fs.IntVar(&config.LoginRateLimitBurst, "b", config.LoginRateLimitBurst, "login burst per client")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// minute flags only override when given, so "90s" from JSON or env survives
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["t"] {
		config.TokenLifetime = time.Duration(*tokenLifetime) * time.Minute
	}
	if set["l"] {
		config.LockDuration = time.Duration(*lockDuration) * time.Minute
	}
	if set["w"] {
		config.SessionSweepInterval = time.Duration(*sweepInterval) * time.Minute
	}
}
