package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// No config file exists in the test working directory; Load falls
	// back to defaults.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("unexpected default port: %d", cfg.Port)
	}
	if cfg.Mode != "release" {
		t.Fatalf("unexpected default mode: %q", cfg.Mode)
	}
	if cfg.RemoteCallTimeout != 15*time.Second {
		t.Fatalf("unexpected default remote timeout: %v", cfg.RemoteCallTimeout)
	}
	if cfg.IdentityWait != time.Minute {
		t.Fatalf("unexpected default identity wait: %v", cfg.IdentityWait)
	}
	if cfg.RateLimitRPS != 10.0 || cfg.RateLimitBurst != 20 {
		t.Fatalf("unexpected default rate limit: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.CallLogPath == "" {
		t.Fatal("expected a default call log path")
	}
}
