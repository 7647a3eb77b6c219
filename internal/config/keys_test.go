package config

import (
	"os"
	"testing"
)

// clearKeyEnv unsets ANTHROPIC_API_KEY for one test and restores it after.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	original, had := os.LookupEnv("ANTHROPIC_API_KEY")
	os.Unsetenv("ANTHROPIC_API_KEY")
	t.Cleanup(func() {
		if had {
			os.Setenv("ANTHROPIC_API_KEY", original)
		}
	})
}

func TestGetAPIKeyPrefersEnvironment(t *testing.T) {
	clearKeyEnv(t)
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"}}
	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("key = %q, want the environment value", key)
	}
}

func TestGetAPIKeyFallsBackToConfig(t *testing.T) {
	clearKeyEnv(t)

	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"}}
	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-from-file" {
		t.Errorf("key = %q, want the config value", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	clearKeyEnv(t)

	if _, err := GetAPIKey(&Config{}); err != ErrNoAPIKey {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	// An unexpanded placeholder is the same as no key at all.
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${MISSING_LOOM_KEY_VAR}"}}
	if _, err := GetAPIKey(cfg); err != ErrNoAPIKey {
		t.Errorf("placeholder key: err = %v, want ErrNoAPIKey", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"well formed", "sk-ant-REDACTED", false},
		{"empty", "", true},
		{"wrong prefix", "sk-openai-12345678901234567890", true},
		{"too short", "sk-ant-abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"full key", "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{"unset", "", "(not set)"},
		{"too short to mask", "short", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.want {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetAPIKeySource(t *testing.T) {
	clearKeyEnv(t)

	if src := GetAPIKeySource(&Config{}); src != KeySourceNone {
		t.Errorf("empty config: source = %v, want KeySourceNone", src)
	}

	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"}}
	if src := GetAPIKeySource(cfg); src != KeySourceConfig {
		t.Errorf("config key: source = %v, want KeySourceConfig", src)
	}

	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	if src := GetAPIKeySource(cfg); src != KeySourceEnv {
		t.Errorf("env key: source = %v, want KeySourceEnv", src)
	}
}
