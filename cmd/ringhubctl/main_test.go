package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aman-churiwal/ringhub-gateway/internal/app"
	"github.com/aman-churiwal/ringhub-gateway/internal/config"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// useTestDB points every command at a sqlite file that outlives a single
// invocation.
func useTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringhub.db")

	previous := openApp
	openApp = func(cfg *config.Config, log *slog.Logger) (*app.App, error) {
		cfg.Limits.CounterBackend = ratelimit.BackendPostgres
		db, err := storage.NewWithDialector(sqlite.Open(path), log)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			return nil, err
		}
		return app.BuildWithDB(cfg, db, log)
	}
	t.Cleanup(func() { openApp = previous })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	cooldownHours = ratelimit.DefaultCooldownHours
	checkAction = models.ActionFork

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCooldownAndClear(t *testing.T) {
	useTestDB(t)

	out, err := run(t, "cooldown", "did:plc:spam", "--hours", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "did:plc:spam in cooldown until")

	out, err = run(t, "check", "did:plc:spam")
	require.NoError(t, err)
	assert.Contains(t, out, "Allowed: false")
	assert.Contains(t, out, "cooldown")

	out, err = run(t, "show", "did:plc:spam", "--json")
	require.NoError(t, err)
	var report struct {
		InCooldown bool `json:"in_cooldown"`
		Reputation struct {
			ViolationCount int `json:"violation_count"`
		} `json:"reputation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.InCooldown)
	assert.Equal(t, 1, report.Reputation.ViolationCount)

	_, err = run(t, "clear", "did:plc:spam")
	require.NoError(t, err)

	out, err = run(t, "check", "did:plc:spam")
	require.NoError(t, err)
	assert.Contains(t, out, "Allowed: true")
}

func TestFlaggedEmpty(t *testing.T) {
	useTestDB(t)

	out, err := run(t, "flagged")
	require.NoError(t, err)
	assert.Contains(t, out, "No flagged actors")
}

func TestCheckUnknownAction(t *testing.T) {
	useTestDB(t)

	_, err := run(t, "check", "did:plc:a", "--action", "like")
	assert.ErrorIs(t, err, ratelimit.ErrUnknownAction)
}

func TestCreateAdminAndPrune(t *testing.T) {
	useTestDB(t)

	out, err := run(t, "create-admin", "--email", "ops@ring.hub", "--password", "hunter22")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin operator ops@ring.hub")

	_, err = run(t, "create-admin", "--email", "ops@ring.hub", "--password", "hunter22")
	assert.Error(t, err)

	out, err = run(t, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 action records")

	out, err = run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema up to date")
}

func TestCooldownRejectsOverlongHours(t *testing.T) {
	useTestDB(t)

	_, err := run(t, "cooldown", "did:plc:spam", "--hours", "3000000")
	require.ErrorIs(t, err, ratelimit.ErrInvalidCooldown)

	out, err := run(t, "check", "did:plc:spam")
	require.NoError(t, err)
	assert.Contains(t, out, "Allowed: true")
}
