package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := domain.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Build.OneFile)
	assert.Empty(t, cfg.Interpreter)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ProjectConfig)
		want   string
	}{
		{"zero timeout", func(c *domain.ProjectConfig) { c.Timeout = 0 }, "timeout must be > 0"},
		{"too many workers", func(c *domain.ProjectConfig) { c.Workers = 65 }, "workers must be between"},
		{"no workers", func(c *domain.ProjectConfig) { c.Workers = 0 }, "workers must be between"},
		{"bad log level", func(c *domain.ProjectConfig) { c.LogLevel = "loud" }, `unknown log_level "loud"`},
		{"negative max age", func(c *domain.ProjectConfig) { c.Cache.MaxAge = -time.Minute }, "cache.max_age"},
		{"bad hidden import", func(c *domain.ProjectConfig) { c.ExtraHiddenImports = []string{"not a module"} }, "extra_hidden_imports"},
		{"bad exclude", func(c *domain.ProjectConfig) { c.ExcludeModules = []string{"9lives"} }, "exclude_modules"},
		{"bad packager level", func(c *domain.ProjectConfig) { c.Build.LogLevel = "chatty" }, "build.log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_CaseInsensitiveLevels(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.LogLevel = "DEBUG"
	cfg.Build.LogLevel = "warn"
	assert.NoError(t, cfg.Validate())
}
