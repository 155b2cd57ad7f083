package utils

import "testing"

func TestConcurrencyScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.DialTimeout <= 0 || cfg.PoolSize <= 0 || cfg.PingTimeout <= 0 {
		t.Fatalf("defaults must be applied: %+v", cfg)
	}
}
