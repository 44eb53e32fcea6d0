package repository

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const testDSN = "host=localhost port=5432 user=postgres password=postgres dbname=matchroom_test sslmode=disable"

// global counter keeps prefixes unique within one process
var testCounter int64

// GenerateUniquePrefix returns a prefix unique to one test so parallel
// tests never touch each other's rows
func GenerateUniquePrefix() string {
	count := atomic.AddInt64(&testCounter, 1)
	return uuid.New().String()[:8] + "_" + time.Now().Format("150405") + "_" + string(rune(count%26+'a'))
}

// SetupIsolatedTestDB connects to the test database, skipping the test when it is unreachable
func SetupIsolatedTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	db, err := sqlx.Connect("postgres", testDSN)
	if err != nil {
		t.Skipf("Skipping test, could not connect to test database: %v", err)
	}

	return db, GenerateUniquePrefix()
}

// CleanupTestDataByPrefix removes rows created by users whose username starts with prefix
func CleanupTestDataByPrefix(t *testing.T, db *sqlx.DB, prefix string) {
	t.Helper()

	ctx := context.Background()
	users := `SELECT id::text FROM users WHERE username LIKE $1`

	_, _ = db.ExecContext(ctx, "DELETE FROM match_searches WHERE user_id IN ("+users+")", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE admin_id::text IN ("+users+")", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE users && ARRAY("+users+")", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE code LIKE $1", strings.ToLower(prefix[:4])+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM users WHERE username LIKE $1", prefix+"%")
}

// CreateIsolatedTestUser creates a user namespaced by prefix
func CreateIsolatedTestUser(t *testing.T, db *sqlx.DB, prefix, name string) *model.User {
	t.Helper()

	userRepo := NewUserRepository(db)
	user := &model.User{
		Username:        prefix + "_" + name,
		ExperienceLevel: model.ExperienceBeginner,
	}

	if err := userRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateIsolatedTestSearch inserts an active search for user
func CreateIsolatedTestSearch(t *testing.T, db *sqlx.DB, user *model.User, settings model.GameSettings) *model.SearchRequest {
	t.Helper()

	search := &model.SearchRequest{
		UserID:    user.ID,
		Settings:  settings,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}

	if err := NewSearchRepository(db).Create(context.Background(), search); err != nil {
		t.Fatalf("Failed to create test search: %v", err)
	}

	return search
}
