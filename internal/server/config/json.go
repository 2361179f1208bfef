package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/palletkeeper/internal/flagx"
	"github.com/dmitrijs2005/palletkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// strings such as "30m" and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	GRPCHealthAddr       string         `json:"grpc_health_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	TokenLifetime        timex.Duration `json:"token_lifetime"`
	MaxFailedAttempts    int            `json:"max_failed_attempts"`
	LockDuration         timex.Duration `json:"lock_duration"`
	PasswordIterations   int            `json:"password_iterations"`
	SessionSweepInterval timex.Duration `json:"session_sweep_interval"`
	LoginRateLimitRPS    float64        `json:"login_rate_limit_rps"`
	LoginRateLimitBurst  int            `json:"login_rate_limit_burst"`
	LogLevel             string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. Keys absent
// from the file keep their current value. An unreadable or malformed file
// panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenLifetime.Duration != 0 {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	if c.LockDuration.Duration != 0 {
		config.LockDuration = c.LockDuration.Duration
	}
	if c.SessionSweepInterval.Duration != 0 {
		config.SessionSweepInterval = c.SessionSweepInterval.Duration
	}
	if c.MaxFailedAttempts != 0 {
		config.MaxFailedAttempts = c.MaxFailedAttempts
	}
	if c.PasswordIterations != 0 {
		config.PasswordIterations = c.PasswordIterations
	}
	if c.LoginRateLimitRPS != 0 {
		config.LoginRateLimitRPS = c.LoginRateLimitRPS
	}
	if c.LoginRateLimitBurst != 0 {
		config.LoginRateLimitBurst = c.LoginRateLimitBurst
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
