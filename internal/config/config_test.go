package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "crm", SSLMode: "disable"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Voice: VoiceProviderConfig{BaseURL: "https://voice.example.com", APIKey: "k"},
		Messaging: MessagingProviderConfig{
			BaseURL:    "https://messaging.example.com",
			AccountSID: "AC1",
			AuthToken:  "tok",
		},
		Engine: EngineConfig{CallOriginNumber: "+15551230000", MessageOriginNumber: "+15551230001"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_OKWithDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access TTL default, got %v", c.Auth.AccessTokenTTL)
	}
	if c.Engine.PlaceTimeout != 10*time.Second {
		t.Fatalf("expected place timeout default, got %v", c.Engine.PlaceTimeout)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB.SSLMode = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB.SSLMode = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_EngineOriginsRequired(t *testing.T) {
	c := validConfig()
	c.Engine.CallOriginNumber = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing call origin")
	}
}

func TestValidate_RefreshMustOutliveAccess(t *testing.T) {
	c := validConfig()
	c.Auth.AccessTokenTTL = time.Hour
	c.Auth.RefreshTokenTTL = time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for refresh TTL below access TTL")
	}
}

func TestHelpers(t *testing.T) {
	c := validConfig()
	if c.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
	if c.RedisAddr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", c.RedisAddr())
	}
	if c.IsProduction() {
		t.Fatalf("local is not production")
	}
}
