package testsetup

import (
	"context"
	"sync"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/google/uuid"
)

// UserDirectory is an in-memory stand-in for the identity service's user table
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]*model.User)}
}

// AddUser registers a beginner with a fresh id
func (d *UserDirectory) AddUser(username string) *model.User {
	now := time.Now()
	u := &model.User{
		ID:              uuid.NewString(),
		Username:        username,
		ExperienceLevel: model.ExperienceBeginner,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()

	cp := *u
	return &cp
}

// RemoveUser drops a user, leaving any searches it owns orphaned
func (d *UserDirectory) RemoveUser(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *UserDirectory) GetByID(ctx context.Context, id string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *UserDirectory) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*model.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok && !seen[id] {
			seen[id] = true
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *UserDirectory) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (d *UserDirectory) UpdatePlayStatus(ctx context.Context, userID string, ready bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PlayStatus = ready
	u.UpdatedAt = time.Now()
	return nil
}

func (d *UserDirectory) profile(id string) *model.UserProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if u, ok := d.users[id]; ok {
		return u.ToProfile()
	}
	return nil
}
