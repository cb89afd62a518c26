package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultInitialBalance, cfg.InitialBalance)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxVerificationAttempts)
	assert.Equal(t, DefaultOTPTTL, cfg.OTPTTL)
	assert.Equal(t, DefaultSecurityQuestion, cfg.SecurityQuestion)
	assert.Equal(t, time.Duration(0), cfg.VerifiedTTL)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "INITIAL_BALANCE", "12500.50")
	setEnv(t, "MAX_VERIFICATION_ATTEMPTS", "5")
	setEnv(t, "OTP_TTL", "2m")
	setEnv(t, "PENDING_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 12500.50, cfg.InitialBalance)
	assert.Equal(t, 5, cfg.MaxVerificationAttempts)
	assert.Equal(t, 2*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 30*time.Second, cfg.PendingTTL)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setEnv(t, "OTP_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultOTPTTL, cfg.OTPTTL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative balance",
			mutate:  func(c *Config) { c.InitialBalance = -1 },
			wantErr: "INITIAL_BALANCE",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.MaxVerificationAttempts = 0 },
			wantErr: "MAX_VERIFICATION_ATTEMPTS",
		},
		{
			name:    "empty security answer",
			mutate:  func(c *Config) { c.SecurityAnswer = "" },
			wantErr: "SECURITY_ANSWER",
		},
		{
			name: "inverted fraud thresholds",
			mutate: func(c *Config) {
				c.MediumValueThreshold = 600
				c.HighValueThreshold = 500
			},
			wantErr: "MEDIUM_VALUE_THRESHOLD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				InitialBalance:          DefaultInitialBalance,
				MaxVerificationAttempts: DefaultMaxAttempts,
				SecurityAnswer:          DefaultSecurityAnswer,
				HighValueThreshold:      DefaultHighValueThreshold,
				MediumValueThreshold:    DefaultMediumValueThreshold,
				FrequencyThreshold:      DefaultFrequencyThreshold,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}
