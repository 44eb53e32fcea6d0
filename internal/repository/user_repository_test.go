package repository

import (
	"context"
	"testing"

	"github.com/go-demo/matchroom/internal/model"
)

const nonExistentUUID = "00000000-0000-0000-0000-000000000000"

func TestUserRepository_Create(t *testing.T) {
	db, prefix := SetupIsolatedTestDB(t)
	defer db.Close()
	defer CleanupTestDataByPrefix(t, db, prefix)

	repo := NewUserRepository(db)
	user := &model.User{
		Username:        prefix + "_create",
		ExperienceLevel: model.ExperienceIntermediate,
	}

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if user.ID == "" {
		t.Error("Expected user ID to be set")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	db, prefix := SetupIsolatedTestDB(t)
	defer db.Close()
	defer CleanupTestDataByPrefix(t, db, prefix)

	repo := NewUserRepository(db)
	user := CreateIsolatedTestUser(t, db, prefix, "getbyid")

	found, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if found.Username != user.Username {
		t.Errorf("Expected username %s, got %s", user.Username, found.Username)
	}
	if found.PlayStatus {
		t.Error("Expected new user to be not ready")
	}

	_, err = repo.GetByID(context.Background(), nonExistentUUID)
	if err != ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, prefix := SetupIsolatedTestDB(t)
	defer db.Close()
	defer CleanupTestDataByPrefix(t, db, prefix)

	repo := NewUserRepository(db)
	user := CreateIsolatedTestUser(t, db, prefix, "byname")

	found, err := repo.GetByUsername(context.Background(), user.Username)
	if err != nil {
		t.Fatalf("Failed to get user by username: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("Expected ID %s, got %s", user.ID, found.ID)
	}

	_, err = repo.GetByUsername(context.Background(), prefix+"_nobody")
	if err != ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_GetByIDs(t *testing.T) {
	db, prefix := SetupIsolatedTestDB(t)
	defer db.Close()
	defer CleanupTestDataByPrefix(t, db, prefix)

	repo := NewUserRepository(db)
	alice := CreateIsolatedTestUser(t, db, prefix, "alice")
	bob := CreateIsolatedTestUser(t, db, prefix, "bob")

	users, err := repo.GetByIDs(context.Background(), []string{alice.ID, bob.ID, nonExistentUUID})
	if err != nil {
		t.Fatalf("Failed to get users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}

	users, err = repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("Failed on empty ids: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("Expected no users for empty ids, got %d", len(users))
	}
}

func TestUserRepository_UpdatePlayStatus(t *testing.T) {
	db, prefix := SetupIsolatedTestDB(t)
	defer db.Close()
	defer CleanupTestDataByPrefix(t, db, prefix)

	repo := NewUserRepository(db)
	user := CreateIsolatedTestUser(t, db, prefix, "ready")

	if err := repo.UpdatePlayStatus(context.Background(), user.ID, true); err != nil {
		t.Fatalf("Failed to update play status: %v", err)
	}

	found, _ := repo.GetByID(context.Background(), user.ID)
	if !found.PlayStatus {
		t.Error("Expected play status to be true")
	}

	err := repo.UpdatePlayStatus(context.Background(), nonExistentUUID, true)
	if err != ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
