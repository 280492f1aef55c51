package config

import (
	"os"
	"testing"
)

func clearEnv() {
	for _, key := range []string{
		"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "DB_DSN", "STORE_TYPE",
		"ADMIN_API_KEY", "BUCKET_SALT", "DEFAULT_KIND",
		"SNAPSHOT_RETENTION_DAYS", "SNAPSHOT_PRUNE_CHUNK",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr=':9090', got '%s'", cfg.MetricsAddr)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if cfg.DefaultKind != "user" {
		t.Errorf("Expected DefaultKind='user', got '%s'", cfg.DefaultKind)
	}
	if cfg.SnapshotRetention != 30 {
		t.Errorf("Expected SnapshotRetention=30, got %d", cfg.SnapshotRetention)
	}
	if cfg.SnapshotPruneChunk != 100 {
		t.Errorf("Expected SnapshotPruneChunk=100, got %d", cfg.SnapshotPruneChunk)
	}
	if cfg.BucketSalt == "" {
		t.Error("Expected a generated bucket salt")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	os.Setenv("APP_ENV", "test")
	os.Setenv("STORE_TYPE", "postgres")
	os.Setenv("BUCKET_SALT", "fixed-salt")
	os.Setenv("SNAPSHOT_RETENTION_DAYS", "7")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("Expected AppEnv='test', got '%s'", cfg.AppEnv)
	}
	if cfg.StoreType != "postgres" {
		t.Errorf("Expected StoreType='postgres', got '%s'", cfg.StoreType)
	}
	if cfg.BucketSalt != "fixed-salt" {
		t.Errorf("Expected BucketSalt='fixed-salt', got '%s'", cfg.BucketSalt)
	}
	if cfg.SnapshotRetention != 7 {
		t.Errorf("Expected SnapshotRetention=7, got %d", cfg.SnapshotRetention)
	}
}

func TestValidate_StoreType(t *testing.T) {
	clearEnv()
	cfg, _ := Load()

	cfg.StoreType = "redis"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error for unsupported store type")
	}
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("Expected ValidationError, got %T", err)
	}
	if ve.Field != "STORE_TYPE" {
		t.Errorf("Expected field STORE_TYPE, got %s", ve.Field)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	clearEnv()
	cfg, _ := Load()

	cfg.StoreType = "postgres"
	cfg.DatabaseDSN = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for postgres without DSN")
	}
}

func TestValidate_RetentionAndChunk(t *testing.T) {
	clearEnv()
	cfg, _ := Load()

	cfg.SnapshotRetention = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative retention")
	}

	cfg.SnapshotRetention = 0 // disabled pruning is valid
	cfg.SnapshotPruneChunk = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero prune chunk")
	}

	cfg.SnapshotPruneChunk = 50
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidate_ProductionConstraints(t *testing.T) {
	clearEnv()
	cfg, _ := Load()
	cfg.AppEnv = "prod"

	// Default admin key rejected in production.
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for default admin key in production")
	}

	cfg.AdminAPIKey = "real-key"
	// Auto-generated salt rejected in production.
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for auto-generated salt in production")
	}

	os.Setenv("BUCKET_SALT", "configured")
	os.Setenv("ADMIN_API_KEY", "real-key")
	defer clearEnv()
	cfg2, _ := Load()
	cfg2.AppEnv = "prod"
	if err := cfg2.Validate(); err != nil {
		t.Errorf("Expected valid production config, got %v", err)
	}
}
