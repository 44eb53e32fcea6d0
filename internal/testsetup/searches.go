package testsetup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/google/uuid"
)

// SearchStore is an in-memory search table. Like the Postgres store it
// rejects a second un-matched search per user and flips matched in one
// conditional step. Inside WithTx the flips are undone on rollback and
// deletes only take effect on commit.
type SearchStore struct {
	mu       sync.Mutex
	searches map[string]*model.SearchRequest
	seq      int64
	order    map[string]int64
	users    *UserDirectory
	now      func() time.Time

	forcedRaces int
	lockCalls   int
	commits     int
	rollbacks   int
	openTx      int
}

func NewSearchStore(users *UserDirectory) *SearchStore {
	return &SearchStore{
		searches: make(map[string]*model.SearchRequest),
		order:    make(map[string]int64),
		users:    users,
		now:      time.Now,
	}
}

// ForceRaceLost makes the next n TryLockAll calls report one row short
func (s *SearchStore) ForceRaceLost(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedRaces = n
}

// Stats reports how many lock attempts, commits and rollbacks happened
func (s *SearchStore) Stats() (lockCalls, commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockCalls, s.commits, s.rollbacks
}

// OpenTx reports how many WithTx transactions are in flight
func (s *SearchStore) OpenTx() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openTx
}

func (s *SearchStore) Create(ctx context.Context, search *model.SearchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.searches {
		if existing.UserID == search.UserID && !existing.Matched {
			return repository.ErrSearchExists
		}
	}

	search.ID = uuid.NewString()
	search.CreatedAt = s.now()
	search.Matched = false
	s.seq++
	s.order[search.ID] = s.seq

	cp := *search
	s.searches[search.ID] = &cp
	return nil
}

// Put stores search as-is. Used to seed expired or foreign rows.
func (s *SearchStore) Put(search *model.SearchRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if search.ID == "" {
		search.ID = uuid.NewString()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = s.now()
	}
	s.seq++
	s.order[search.ID] = s.seq

	cp := *search
	s.searches[search.ID] = &cp
}

func (s *SearchStore) GetByID(ctx context.Context, id string) (*model.SearchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[id]
	if !ok {
		return nil, repository.ErrSearchNotFound
	}
	cp := *search
	return &cp, nil
}

func (s *SearchStore) DeleteByUser(ctx context.Context, userID string, onlyUnmatched bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, search := range s.searches {
		if search.UserID == userID && (!onlyUnmatched || !search.Matched) {
			s.remove(id)
			n++
		}
	}
	return n, nil
}

func (s *SearchStore) DeleteByID(ctx context.Context, id, ownerID string, onlyUnmatched bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[id]
	if !ok || search.UserID != ownerID || (onlyUnmatched && search.Matched) {
		return 0, nil
	}
	s.remove(id)
	return 1, nil
}

func (s *SearchStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, search := range s.searches {
		if search.IsExpired(now) {
			s.remove(id)
			n++
		}
	}
	return n, nil
}

func (s *SearchStore) DeleteAll(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := s.searches[id]; ok {
			s.remove(id)
			n++
		}
	}
	return n, nil
}

func (s *SearchStore) ReleaseAll(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		search, ok := s.searches[id]
		if !ok || !search.Matched || s.hasActive(search.UserID) {
			continue
		}
		search.Matched = false
		n++
	}
	return n, nil
}

func (s *SearchStore) hasActive(userID string) bool {
	for _, search := range s.searches {
		if search.UserID == userID && !search.Matched {
			return true
		}
	}
	return false
}

// Count returns the number of stored searches
func (s *SearchStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

// ActiveFor returns the number of un-matched searches owned by userID
func (s *SearchStore) ActiveFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, search := range s.searches {
		if search.UserID == userID && !search.Matched {
			n++
		}
	}
	return n
}

// Matched reports whether the search with id exists and is flipped
func (s *SearchStore) Matched(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[id]
	return ok && search.Matched
}

func (s *SearchStore) WithTx(ctx context.Context, fn func(tx repository.SearchTx) error) error {
	tx := &searchTx{store: s, ctx: ctx}

	s.mu.Lock()
	s.openTx++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.openTx--
		s.mu.Unlock()
	}()

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}

	tx.commit()
	return nil
}

func (s *SearchStore) remove(id string) {
	delete(s.searches, id)
	delete(s.order, id)
}

type searchTx struct {
	store   *SearchStore
	ctx     context.Context
	flipped []string
	deletes []string
}

var errTxDone = errors.New("transaction context done")

func (t *searchTx) FindCandidates(ctx context.Context, q repository.CandidateQuery) ([]*model.SearchCandidate, error) {
	if t.ctx.Err() != nil {
		return nil, errTxDone
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.Limit <= 0 {
		return []*model.SearchCandidate{}, nil
	}

	now := s.now()
	var matches []*model.SearchRequest
	for _, search := range s.searches {
		if search.Matched || search.IsExpired(now) {
			continue
		}
		if search.ID == q.ExcludeSearchID || search.UserID == q.ExcludeUserID {
			continue
		}
		if search.Settings.GameMode != q.Settings.GameMode ||
			search.Settings.Language != q.Settings.Language ||
			search.Settings.DifficultyLevel != q.Settings.DifficultyLevel {
			continue
		}
		matches = append(matches, search)
	}

	sort.Slice(matches, func(i, j int) bool {
		return s.order[matches[i].ID] < s.order[matches[j].ID]
	})
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	out := make([]*model.SearchCandidate, 0, len(matches))
	for _, m := range matches {
		c := &model.SearchCandidate{SearchRequest: *m}
		if s.users != nil {
			c.Owner = s.users.profile(m.UserID)
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *searchTx) TryLockAll(ctx context.Context, ids []string) (int64, error) {
	if t.ctx.Err() != nil {
		return 0, errTxDone
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lockCalls++
	now := s.now()
	var n int64
	for _, id := range ids {
		search, ok := s.searches[id]
		if !ok || search.Matched || search.IsExpired(now) {
			continue
		}
		search.Matched = true
		t.flipped = append(t.flipped, id)
		n++
	}

	if s.forcedRaces > 0 && n > 0 {
		s.forcedRaces--
		n--
	}
	return n, nil
}

func (t *searchTx) DeleteAll(ctx context.Context, ids []string) (int64, error) {
	if t.ctx.Err() != nil {
		return 0, errTxDone
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := s.searches[id]; ok {
			t.deletes = append(t.deletes, id)
			n++
		}
	}
	return n, nil
}

func (t *searchTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.deletes {
		s.remove(id)
	}
	s.commits++
}

func (t *searchTx) rollback() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.flipped {
		if search, ok := s.searches[id]; ok {
			search.Matched = false
		}
	}
	s.rollbacks++
}
