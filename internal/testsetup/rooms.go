package testsetup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RoomStore is an in-memory room table with a unique code constraint
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[string]*model.Room
	onCreate func(room *model.Room) error
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*model.Room)}
}

// OnCreate installs fn to run before every Create. A non-nil error from fn
// is returned by Create and nothing is stored.
func (s *RoomStore) OnCreate(fn func(room *model.Room) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreate = fn
}

func (s *RoomStore) Create(ctx context.Context, room *model.Room) error {
	s.mu.RLock()
	hook := s.onCreate
	s.mu.RUnlock()
	if hook != nil {
		if err := hook(room); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; ok {
		return repository.ErrRoomCodeTaken
	}

	now := time.Now()
	room.ID = uuid.NewString()
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.Code] = copyRoom(room)
	return nil
}

func (s *RoomStore) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return copyRoom(r), nil
}

func (s *RoomStore) FindByMember(ctx context.Context, userID string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.Room
	for _, r := range s.rooms {
		if r.HasMember(userID) && (found == nil || r.UpdatedAt.After(found.UpdatedAt)) {
			found = r
		}
	}
	if found == nil {
		return nil, repository.ErrRoomNotFound
	}
	return copyRoom(found), nil
}

func (s *RoomStore) Update(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; !ok {
		return repository.ErrRoomNotFound
	}
	room.UpdatedAt = time.Now()
	s.rooms[room.Code] = copyRoom(room)
	return nil
}

func (s *RoomStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; !ok {
		return repository.ErrRoomNotFound
	}
	delete(s.rooms, code)
	return nil
}

// Put stores room as-is, bypassing the code constraint
func (s *RoomStore) Put(room *model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now()
	}
	s.rooms[room.Code] = copyRoom(room)
}

// All returns a snapshot of every room ordered by code
func (s *RoomStore) All() []*model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, copyRoom(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func copyRoom(r *model.Room) *model.Room {
	cp := *r
	cp.Users = append(pq.StringArray(nil), r.Users...)
	cp.Settings.Topics = append([]string(nil), r.Settings.Topics...)
	return &cp
}
