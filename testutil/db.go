// Package testutil builds throwaway SQLite databases and fixtures for tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/models"
)

var seq atomic.Int64

// NewDB opens a migrated SQLite database in a per-test temp dir. The UNIQUE
// and foreign key constraints are the real ones.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "pacts.db"),
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a unique username derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	username := fmt.Sprintf("%s%d", name, seq.Add(1))
	u := &models.User{
		Username:   &username,
		Name:       name,
		Image:      "https://example.com/" + username + ".png",
		Provider:   "test",
		ProviderID: username,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePact inserts an open pact owned by author with a deadline a month out.
func CreatePact(t testing.TB, db *gorm.DB, author *models.User) *models.Pact {
	t.Helper()
	p := &models.Pact{
		UserID:   author.ID,
		Title:    fmt.Sprintf("Pact %d", seq.Add(1)),
		Deadline: time.Now().Add(30 * 24 * time.Hour),
		Tags:     "#test",
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateCheckIn inserts a check-in on pact by the pact's author.
func CreateCheckIn(t testing.TB, db *gorm.DB, pact *models.Pact, at time.Time) *models.CheckIn {
	t.Helper()
	ci := &models.CheckIn{
		PactID:    pact.ID,
		UserID:    pact.UserID,
		Content:   "progress",
		Status:    models.StatusOnTrack,
		CreatedAt: at,
	}
	require.NoError(t, db.Create(ci).Error)
	return ci
}

// CountKudoRows counts kudo rows for a check-in straight from the table.
func CountKudoRows(t testing.TB, db *gorm.DB, checkInID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Kudo{}).Where("check_in_id = ?", checkInID).Count(&n).Error)
	return n
}
