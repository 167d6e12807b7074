package config_test

import (
	"testing"
	"time"

	"github.com/preflect/memsync/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8765" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.SyncInterval() != time.Minute {
		t.Errorf("SyncInterval = %s", cfg.SyncInterval())
	}
	if cfg.ProfileCacheTTL() != 5*time.Minute {
		t.Errorf("ProfileCacheTTL = %s", cfg.ProfileCacheTTL())
	}
	if cfg.UseClassifierService {
		t.Error("classifier service must default to off")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("SYNC_INTERVAL_SECONDS", "120")
	t.Setenv("SYNC_USERS", "Alice,Bob")
	t.Setenv("USE_CLASSIFIER_SERVICE", "true")
	t.Setenv("SCORE_THRESHOLD", "0.4")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.SyncInterval() != 2*time.Minute {
		t.Errorf("SyncInterval = %s", cfg.SyncInterval())
	}
	if len(cfg.SyncUsers) != 2 || cfg.SyncUsers[0] != "Alice" || cfg.SyncUsers[1] != "Bob" {
		t.Errorf("SyncUsers = %v", cfg.SyncUsers)
	}
	if !cfg.UseClassifierService {
		t.Error("UseClassifierService = false")
	}
	if cfg.ScoreThreshold != 0.4 {
		t.Errorf("ScoreThreshold = %v", cfg.ScoreThreshold)
	}
}
