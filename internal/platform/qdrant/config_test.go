package qdrant

import "testing"

func TestValidateConfigValid(t *testing.T) {
	err := ValidateConfig(Config{
		URL:        "http://qdrant:6334",
		Collection: "Aidly",
	})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfigMissingURL(t *testing.T) {
	err := ValidateConfig(Config{Collection: "Aidly"})
	if err == nil {
		t.Fatalf("ValidateConfig: expected error, got nil")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got=%T", err)
	}
	if cfgErr.Code != ConfigErrorMissingURL {
		t.Fatalf("code: want=%q got=%q", ConfigErrorMissingURL, cfgErr.Code)
	}
}

func TestValidateConfigInvalidURL(t *testing.T) {
	for _, raw := range []string{"qdrant:6334", "://nope", "ftp://qdrant:6334"} {
		err := ValidateConfig(Config{URL: raw, Collection: "Aidly"})
		if err == nil {
			t.Fatalf("ValidateConfig(%q): expected error, got nil", raw)
		}
		cfgErr, ok := err.(*ConfigError)
		if !ok {
			t.Fatalf("expected *ConfigError, got=%T", err)
		}
		if cfgErr.Code != ConfigErrorInvalidURL {
			t.Fatalf("code for %q: want=%q got=%q", raw, ConfigErrorInvalidURL, cfgErr.Code)
		}
	}
}

func TestValidateConfigMissingCollection(t *testing.T) {
	err := ValidateConfig(Config{URL: "http://qdrant:6334"})
	if err == nil {
		t.Fatalf("ValidateConfig: expected error, got nil")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got=%T", err)
	}
	if cfgErr.Code != ConfigErrorMissingCollection {
		t.Fatalf("code: want=%q got=%q", ConfigErrorMissingCollection, cfgErr.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
	}{
		{"http://localhost:6334", "localhost", 6334, false},
		{"http://qdrant", "qdrant", 6334, false},
		{"https://qdrant.internal:7001", "qdrant.internal", 7001, true},
	}
	for _, tt := range tests {
		host, port, useTLS, err := Config{URL: tt.url, Collection: "Aidly"}.endpoint()
		if err != nil {
			t.Fatalf("endpoint(%q): %v", tt.url, err)
		}
		if host != tt.wantHost || port != tt.wantPort || useTLS != tt.wantTLS {
			t.Fatalf(
				"endpoint(%q): want=(%s,%d,%v) got=(%s,%d,%v)",
				tt.url, tt.wantHost, tt.wantPort, tt.wantTLS, host, port, useTLS,
			)
		}
	}
}
