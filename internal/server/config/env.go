package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvHTTPAddr             = "HTTP_ADDR"
	EnvGRPCHealthAddr       = "GRPC_HEALTH_ADDR"
	EnvDatabaseDSN          = "DATABASE_DSN"
	EnvSecretKey            = "SECRET_KEY"
	EnvTokenLifetime        = "TOKEN_LIFETIME"
	EnvMaxFailedAttempts    = "MAX_FAILED_ATTEMPTS"
	EnvLockDuration         = "LOCK_DURATION"
	EnvPasswordIterations   = "PASSWORD_ITERATIONS"
	EnvSessionSweepInterval = "SESSION_SWEEP_INTERVAL"
	EnvLoginRateLimitRPS    = "LOGIN_RATE_LIMIT_RPS"
	EnvLoginRateLimitBurst  = "LOGIN_RATE_LIMIT_BURST"
	EnvLogLevel             = "LOG_LEVEL"
)

// parseEnv overlays values from the process environment. The file named by
// -env is loaded first; without it a .env in the working directory is used
// when present. Variables already set in the environment win over the file.
// A malformed numeric or duration value panics.
func parseEnv(config *Config) {
	if f := flagx.EnvFileFlag(); f != "" {
		if err := godotenv.Load(f); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	envString(EnvHTTPAddr, &config.HTTPAddr)
	envString(EnvGRPCHealthAddr, &config.GRPCHealthAddr)
	envString(EnvDatabaseDSN, &config.DatabaseDSN)
	envString(EnvSecretKey, &config.SecretKey)
	envString(EnvLogLevel, &config.LogLevel)

	envDuration(EnvTokenLifetime, &config.TokenLifetime)
	envDuration(EnvLockDuration, &config.LockDuration)
	envDuration(EnvSessionSweepInterval, &config.SessionSweepInterval)

	envInt(EnvMaxFailedAttempts, &config.MaxFailedAttempts)
	envInt(EnvPasswordIterations, &config.PasswordIterations)
	envInt(EnvLoginRateLimitBurst, &config.LoginRateLimitBurst)

	if v, ok := os.LookupEnv(EnvLoginRateLimitRPS); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			panic(fmt.Errorf("%s: %w", EnvLoginRateLimitRPS, err))
		}
		config.LoginRateLimitRPS = f
	}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", name, err))
	}
	*dst = n
}

func envDuration(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", name, err))
	}
	*dst = d
}
