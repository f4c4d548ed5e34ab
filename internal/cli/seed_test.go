package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"muhabet/internal/config"
	"muhabet/internal/storage"
	"muhabet/internal/store"
)

func TestSeedCreatesGlobalChannelOnce(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"databases": {"sqlite3": {"dsn": "seed.db"}}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var outputs []string
	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		cmd := NewRootCommand()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"seed", "--config", cfgPath, "--db", "sqlite3"})
		if err := cmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
		outputs = append(outputs, out.String())
	}
	if !strings.HasPrefix(outputs[0], "created GLOBAL channel") {
		t.Fatalf("first run output %q", outputs[0])
	}
	if !strings.HasPrefix(outputs[1], "GLOBAL channel already exists") {
		t.Fatalf("second run output %q", outputs[1])
	}

	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: filepath.Join(dir, "seed.db")}}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	id, err := store.NewService(db, "sqlite3").FindGlobalChannelID(context.Background())
	if err != nil || id == "" || !strings.Contains(outputs[0], id) {
		t.Fatalf("seeded channel not found: %q, %v", id, err)
	}
}

func TestSeedFailsOnMissingExplicitConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"seed", "--config", filepath.Join(t.TempDir(), "missing.json")})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
