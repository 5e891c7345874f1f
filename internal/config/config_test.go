package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppConfig_Defaults(t *testing.T) {
	t.Setenv("RELAY_RUNTIME_PATH", t.TempDir())

	cfg, err := ParseAppConfig()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.GetContextMaxMessages())
	assert.Equal(t, time.Hour, cfg.GetSessionTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetModelTimeout())
	assert.Equal(t, 1000, cfg.GetMaxTokens())
	assert.Equal(t, DefaultSystemPrompt, cfg.GetSystemPrompt())
	assert.True(t, cfg.IsAPISelected())
	assert.False(t, cfg.IsTelegramSelected())
	assert.Zero(t, cfg.ReapInterval)
}

func TestParseAppConfig_Overrides(t *testing.T) {
	t.Setenv("RELAY_RUNTIME_PATH", t.TempDir())
	t.Setenv("CONTEXT_MAX_MESSAGES", "6")
	t.Setenv("SESSION_TIMEOUT", "15m")
	t.Setenv("SYSTEM_PROMPT", "be terse")

	cfg, err := ParseAppConfig()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.GetContextMaxMessages())
	assert.Equal(t, 15*time.Minute, cfg.GetSessionTimeout())
	assert.Equal(t, "be terse", cfg.GetSystemPrompt())
}

func TestParseLLMConfig_DefaultModel(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{provider: "groq", want: "llama-3.3-70b-versatile"},
		{provider: "openai", want: "gpt-3.5-turbo"},
		{provider: "openai", model: "gpt-4o", want: "gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"_"+tt.want, func(t *testing.T) {
			t.Setenv("LLM_PROVIDER", tt.provider)
			t.Setenv("LLM_MODEL", tt.model)

			cfg, err := ParseLLMConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.GetModel())
			assert.InDelta(t, 0.7, cfg.GetTemperature(), 1e-9)
		})
	}
}

func TestAccessConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       AccessConfig
		userID    int64
		wantAllow bool
		wantAdmin bool
	}{
		{name: "empty_whitelist_allows_all", cfg: AccessConfig{}, userID: 7, wantAllow: true},
		{name: "whitelisted", cfg: AccessConfig{WhitelistedUsers: []int64{7}}, userID: 7, wantAllow: true},
		{name: "not_whitelisted", cfg: AccessConfig{WhitelistedUsers: []int64{7}}, userID: 8},
		{
			name:      "admin_bypasses_whitelist",
			cfg:       AccessConfig{WhitelistedUsers: []int64{7}, AdminUserIDs: []int64{9}},
			userID:    9,
			wantAllow: true,
			wantAdmin: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAllow, tt.cfg.IsAllowed(tt.userID))
			assert.Equal(t, tt.wantAdmin, tt.cfg.IsAdmin(tt.userID))
		})
	}
}
