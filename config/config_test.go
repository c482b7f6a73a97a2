package config

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newConfigFromEnv(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	cfg := &Config{}
	cfg.SetDefaults(v, "")

	v.SetEnvPrefix("MISPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		t.Fatalf("failed to unmarshal config: %v", err)
	}

	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := newConfigFromEnv(t)

	if cfg.Mode != ModeEmbedded {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeEmbedded)
	}
	if cfg.Server.Address != ":8000" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":8000")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Events.Type != "memory" {
		t.Errorf("Events.Type = %q, want %q", cfg.Events.Type, "memory")
	}
	if len(cfg.Items) != 1 {
		t.Fatalf("got %d items, want 1: %v", len(cfg.Items), cfg.Items)
	}
	if cfg.Items[0].ID != "charizard-1st-ed" {
		t.Errorf("Items[0].ID = %q, want %q", cfg.Items[0].ID, "charizard-1st-ed")
	}
	if cfg.Items[0].Quantity != 1 {
		t.Errorf("Items[0].Quantity = %d, want 1", cfg.Items[0].Quantity)
	}
}

func TestEnvVarOverrides(t *testing.T) {
	t.Setenv("MISPRINT_SERVER_ADDRESS", ":9100")
	t.Setenv("MISPRINT_LOG_LEVEL", "debug")
	t.Setenv("MISPRINT_DATABASE_TYPE", "memory")

	cfg := newConfigFromEnv(t)

	if cfg.Server.Address != ":9100" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":9100")
	}
	if cfg.GetLogLevel() != "debug" {
		t.Errorf("GetLogLevel() = %q, want %q", cfg.GetLogLevel(), "debug")
	}
	if cfg.Database.Type != "memory" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "memory")
	}
}

func TestInitializeEmbeddedWithMemoryBackends(t *testing.T) {
	cfg := newConfigFromEnv(t)
	cfg.Database.Type = "memory"
	cfg.Events.Type = "memory"

	services, err := cfg.Initialize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if services.ShopService == nil {
		t.Fatal("ShopService is nil")
	}
	if services.Coordinator == nil {
		t.Fatal("Coordinator is nil")
	}

	item, err := services.ShopService.Status(context.Background(), "charizard-1st-ed")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if item.Quantity != 1 {
		t.Errorf("seeded quantity = %d, want 1", item.Quantity)
	}
}

func TestInitializeRemoteRequiresURL(t *testing.T) {
	cfg := newConfigFromEnv(t)
	cfg.Mode = ModeRemote
	cfg.URL = ""

	if _, err := cfg.Initialize(context.Background(), nil); err == nil {
		t.Fatal("expected error for remote mode without URL")
	}
}

func TestInitializeRemote(t *testing.T) {
	cfg := newConfigFromEnv(t)
	cfg.Mode = ModeRemote
	cfg.URL = "http://localhost:8000"

	services, err := cfg.Initialize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		_ = services.Close()
	}()

	if services.ShopService == nil {
		t.Fatal("ShopService is nil")
	}
	if services.Coordinator != nil {
		t.Error("Coordinator should be nil in remote mode")
	}
}
