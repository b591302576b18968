package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ehr/ordercapture/internal/config"
	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/events"
	"github.com/ehr/ordercapture/migrations"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "status"},
		"catalog": {"import"},
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command, got %v (%v)", name, cmd, err)
		}
		for _, sub := range subs {
			c, _, err := root.Find([]string{name, sub})
			if err != nil || c.Name() != sub {
				t.Errorf("expected %s %s command", name, sub)
			}
			if c.Flags().Lookup("tenant") == nil {
				t.Errorf("%s %s: expected --tenant flag", name, sub)
			}
		}
	}
}

func TestCatalogImport_RequiresFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"catalog", "import"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "--file") {
		t.Errorf("expected --file error, got %v", err)
	}
}

func TestBodyLimit(t *testing.T) {
	if got := bodyLimit(10 << 20); got != "11264K" {
		t.Errorf("expected 11264K, got %s", got)
	}
}

func TestRateLimitConfig(t *testing.T) {
	rl := rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 7})
	if rl.RequestsPerSecond != 5 || rl.Burst != 7 {
		t.Errorf("unexpected config %+v", rl)
	}
	if rl.IdleTTL == 0 {
		t.Error("expected default idle TTL")
	}

	rl = rateLimitConfig(&config.Config{RateLimitRPS: 5})
	if rl.Burst != 100 {
		t.Errorf("expected default burst, got %d", rl.Burst)
	}
}

func TestNewPublisher_NopWithoutBrokers(t *testing.T) {
	pub := newPublisher(&config.Config{KafkaTopic: "t"}, newLogger("production", &bytes.Buffer{}))
	if _, ok := pub.(events.NopPublisher); !ok {
		t.Errorf("expected NopPublisher, got %T", pub)
	}
}

func TestNewLogger_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON log line, got %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, "tenant_default", []db.MigrationStatus{
		{Version: 1, Name: "001_order_capture.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-03-01 09:00:00") {
		t.Errorf("missing applied row in %q", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("missing pending row in %q", out)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := db.NewMigrator(nil, migrations.FS).Load()
	if err != nil {
		t.Fatalf("failed to load migrations: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("expected migration 1, got %+v", migs)
	}
	for _, table := range []string{"service_request", "observation", "document_reference", "activity_definition"} {
		if !strings.Contains(migs[0].SQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("expected table %s", table)
		}
	}
}
