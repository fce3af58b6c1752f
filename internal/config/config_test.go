package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_PG_DSN", "postgres://minions:secret@db:5432/minds")

	path := writeConfig(t, `{
		"server": {"port": 9090},
		"database": {
			"postgres": {"dsn": "${TEST_PG_DSN}"},
			"redis": {"url": "${TEST_REDIS_URL:redis://localhost:6379/0}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if got := cfg.Database.Postgres.DSN; got != "postgres://minions:secret@db:5432/minds" {
		t.Errorf("dsn: got %q", got)
	}
	// TEST_REDIS_URL is unset, so the inline default applies.
	if got := cfg.Database.Redis.URL; got != "redis://localhost:6379/0" {
		t.Errorf("redis url: got %q", got)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("TEST_QDRANT_HOST", "qdrant.internal")

	path := writeConfig(t, `{
		"database": {"qdrant": {"host": "${TEST_QDRANT_HOST:localhost}", "port": 6334}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Qdrant.Host != "qdrant.internal" {
		t.Errorf("host: got %q, want qdrant.internal", cfg.Database.Qdrant.Host)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestDefaultIsSelfContained(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Postgres.DSN != "" {
		t.Error("default config should not require postgres")
	}
	if len(cfg.Minions) == 0 {
		t.Error("default config should spawn at least one minion")
	}
	if cfg.Cognition.RegulationInterval() != 0 {
		t.Errorf("regulation interval: got %v, want 0 (engine default)", cfg.Cognition.RegulationInterval())
	}
}

func TestLoadParsesCognitionAndMinions(t *testing.T) {
	path := writeConfig(t, `{
		"cognition": {
			"mood_alpha": 0.4,
			"extreme_threshold": 0.5,
			"pull_factor": 0.3,
			"autonomy_threshold": 0.7,
			"rate_quota": 5,
			"rate_window_sec": 30,
			"loop_threshold": 0.8,
			"health_ceiling": 0.5,
			"consolidation_interval_sec": 120,
			"decay_half_life_hours": 48
		},
		"minions": [
			{"id": "ada", "name": "Ada", "persona": "Thoughtful tinkerer.", "alpha": 0.25}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cognition.MoodAlpha != 0.4 {
		t.Errorf("mood alpha: got %v", cfg.Cognition.MoodAlpha)
	}
	if cfg.Cognition.ExtremeThreshold != 0.5 || cfg.Cognition.PullFactor != 0.3 {
		t.Errorf("regulation tunables: got %v/%v",
			cfg.Cognition.ExtremeThreshold, cfg.Cognition.PullFactor)
	}
	if cfg.Cognition.LoopThreshold != 0.8 || cfg.Cognition.HealthCeiling != 0.5 {
		t.Errorf("safeguard tunables: got %v/%v",
			cfg.Cognition.LoopThreshold, cfg.Cognition.HealthCeiling)
	}
	if cfg.Cognition.DecayHalfLifeHours != 48 {
		t.Errorf("decay half life: got %v", cfg.Cognition.DecayHalfLifeHours)
	}
	if got := cfg.Cognition.ConsolidationInterval(); got.Seconds() != 120 {
		t.Errorf("consolidation interval: got %v", got)
	}
	if len(cfg.Minions) != 1 || cfg.Minions[0].ID != "ada" {
		t.Fatalf("minions: got %+v", cfg.Minions)
	}
	if cfg.Minions[0].Alpha != 0.25 {
		t.Errorf("alpha: got %v", cfg.Minions[0].Alpha)
	}
}
