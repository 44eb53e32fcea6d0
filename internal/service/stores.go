package service

import (
	"context"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/repository"
)

// SearchStore is the search record persistence the matchmaker depends on.
// *repository.SearchRepository satisfies it. A transaction opened by WithTx
// must not wait on another store call.
type SearchStore interface {
	Create(ctx context.Context, search *model.SearchRequest) error
	GetByID(ctx context.Context, id string) (*model.SearchRequest, error)
	DeleteByUser(ctx context.Context, userID string, onlyUnmatched bool) (int64, error)
	DeleteByID(ctx context.Context, id, ownerID string, onlyUnmatched bool) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context, ids []string) (int64, error)
	ReleaseAll(ctx context.Context, ids []string) (int64, error)
	WithTx(ctx context.Context, fn func(tx repository.SearchTx) error) error
}

// RoomStore is the room persistence. *repository.RoomRepository satisfies it.
type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	GetByCode(ctx context.Context, code string) (*model.Room, error)
	FindByMember(ctx context.Context, userID string) (*model.Room, error)
	Update(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, code string) error
}

// UserDirectory is the read side of the identity service plus the ready flag.
// *repository.UserRepository satisfies it.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePlayStatus(ctx context.Context, userID string, ready bool) error
}

// Locker takes a short-lived cluster wide lock. *cache.Cache satisfies it.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}
