package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("api")
	require.NoError(t, err)
	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, time.Hour, cfg.JwtTTL)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, "*/5 * * * *", cfg.PromoRefreshCron)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "zero")

	_, err := Load("api")
	assert.ErrorContains(t, err, "REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := Config{PasswordRegexp: "^.{8,}$", PromoRefreshCron: "0 * * * *", DefaultPageSize: 10, JwtTTL: time.Minute}
	assert.NoError(t, base.Validate())

	badCron := base
	badCron.PromoRefreshCron = "every minute"
	assert.ErrorContains(t, badCron.Validate(), "PROMO_REFRESH_CRON")

	badRegexp := base
	badRegexp.PasswordRegexp = "(["
	assert.ErrorContains(t, badRegexp.Validate(), "PASSWORD_REGEXP")

	badPage := base
	badPage.DefaultPageSize = 0
	assert.Error(t, badPage.Validate())
}

func TestTimeZone(t *testing.T) {
	cfg := Config{PasswordRegexp: "^.{8,}$", PromoRefreshCron: "0 * * * *", DefaultPageSize: 10, JwtTTL: time.Minute, TimeZone: "Mars/Olympus"}
	assert.ErrorContains(t, cfg.Validate(), "TIME_ZONE")
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.TimeZone = "UTC"
	assert.NoError(t, cfg.Validate())
}
