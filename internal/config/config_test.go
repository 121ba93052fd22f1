package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, expected 8080", cfg.Server.Port)
	}
	if cfg.AuditStore.Driver != "sql" {
		t.Errorf("AuditStore.Driver = %q, expected sql", cfg.AuditStore.Driver)
	}
	if cfg.Audit.BatchSize != MaxBatchSize {
		t.Errorf("Audit.BatchSize = %d, expected %d", cfg.Audit.BatchSize, MaxBatchSize)
	}
}

func TestLoad_FileValuesAndClamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
audit_store:
  driver: memory
audit:
  page_size: 25
  batch_size: 2000
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, expected 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unset Server.Host should keep default, got %q", cfg.Server.Host)
	}
	if cfg.AuditStore.Driver != "memory" {
		t.Errorf("AuditStore.Driver = %q, expected memory", cfg.AuditStore.Driver)
	}
	if cfg.Audit.PageSize != 25 {
		t.Errorf("Audit.PageSize = %d, expected 25", cfg.Audit.PageSize)
	}
	if cfg.Audit.BatchSize != MaxBatchSize {
		t.Errorf("batch size above the store ceiling should clamp to %d, got %d", MaxBatchSize, cfg.Audit.BatchSize)
	}
	if cfg.Audit.ExportLimit != DefaultExportLimit {
		t.Errorf("Audit.ExportLimit = %d, expected %d", cfg.Audit.ExportLimit, DefaultExportLimit)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUDIT_STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("REDIS_URL", "redis://:secret@cache:6380/2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuditStore.Driver != "mongo" {
		t.Errorf("AuditStore.Driver = %q, expected mongo", cfg.AuditStore.Driver)
	}
	if cfg.AuditStore.MongoURI != "mongodb://db:27017" {
		t.Errorf("AuditStore.MongoURI = %q", cfg.AuditStore.MongoURI)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6380" || cfg.Redis.Password != "secret" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
}

func TestAuditConfig_Normalized(t *testing.T) {
	got := AuditConfig{}.Normalized()
	if got.PageSize != DefaultPageSize || got.ActionSampleSize != DefaultActionSampleSize ||
		got.ExportLimit != DefaultExportLimit || got.BatchSize != MaxBatchSize {
		t.Errorf("Normalized() = %+v", got)
	}

	small := AuditConfig{BatchSize: 2}.Normalized()
	if small.BatchSize != 2 {
		t.Errorf("batch size under the ceiling should be kept, got %d", small.BatchSize)
	}
}
