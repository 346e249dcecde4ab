package db

import (
	"strings"
	"testing"

	"github.com/fieldline/fieldline/internal/config"
)

func TestRunMigrateRejectsBadCommands(t *testing.T) {
	t.Parallel()

	cfg := config.PostgresConfig{Host: "localhost", Port: 5432, User: "fieldline", Database: "fieldline", SSLMode: "disable"}

	err := RunMigrate(nil, cfg, nil, "sideways", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown migrate command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	err = RunMigrate(nil, cfg, nil, "force", nil)
	if err == nil || !strings.Contains(err.Error(), "version number") {
		t.Fatalf("expected missing version error, got %v", err)
	}
}
