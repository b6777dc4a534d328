package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Seating.ProposalTTL)
	assert.Equal(t, "greedy", cfg.Seating.DefaultAlgorithm)
	assert.Equal(t, 5000, cfg.Seating.MaxStudents)
	assert.Equal(t, 3, cfg.Exports.WorkerRetries)
	assert.Equal(t, time.Minute, cfg.RateLimit.RefillInterval)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3, cfg.Database.ConnectRetries)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, "Administrator", cfg.Auth.BootstrapName)
	assert.Empty(t, cfg.Auth.BootstrapEmail)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SEATING_PROPOSAL_TTL", "5m")
	v.Set("SEATING_DEFAULT_ALGORITHM", " GREEDY ")
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	v.Set("RATE_LIMIT_REFILL_INTERVAL", "not-a-duration")
	v.Set("AUTH_BOOTSTRAP_EMAIL", " admin@school.test ")

	cfg := fromViper(v)

	assert.Equal(t, 5*time.Minute, cfg.Seating.ProposalTTL)
	assert.Equal(t, "greedy", cfg.Seating.DefaultAlgorithm)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "admin@school.test", cfg.Auth.BootstrapEmail)
}
