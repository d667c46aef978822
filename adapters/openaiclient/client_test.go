package openaiclient

import (
	"testing"
	"time"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{APIKey: "sk-test"}, false},
		{"missing key", Config{}, true},
		{"negative timeout", Config{APIKey: "sk-test", Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("OPENAI_TIMEOUT", "5s")

	config := NewConfigFromEnv()
	if config.APIKey != "sk-env" {
		t.Errorf("Expected API key from env, got %q", config.APIKey)
	}
	if config.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("Expected base URL from env, got %q", config.BaseURL)
	}
	if config.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %s", config.Timeout)
	}

	if _, err := New(config); err != nil {
		t.Errorf("New() error = %v", err)
	}
}
