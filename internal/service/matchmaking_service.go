package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-demo/matchroom/internal/config"
	"github.com/go-demo/matchroom/internal/model"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/metrics"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrRaceLost means another matcher flipped at least one of the searches
// this attempt tried to lock. The attempt is rolled back and retried.
var ErrRaceLost = errors.New("lock acquisition lost to a concurrent matcher")

const (
	noMatchMessage     = "No matches found within timeout period"
	expiredMessage     = "Search expired"
	janitorLockKey     = "matchroom:janitor"
	publishGracePeriod = 5 * time.Second
	// bounds one candidate query, lock and room build
	attemptTimeout = 10 * time.Second
	// how long a matched search stays readable after its row is deleted
	settledRetention = 2 * time.Minute
)

// RoomCreator builds the room for a successful match
type RoomCreator interface {
	CreateMatchRoom(ctx context.Context, userIDs []string, settings model.GameSettings) (*model.RoomDetail, error)
}

// Matchmaker runs one polling task per search. Tasks are detached from the
// request that started them and bounded by a weighted semaphore.
type Matchmaker struct {
	searches  SearchStore
	rooms     RoomCreator
	publisher notify.Publisher
	metrics   metrics.MatchmakingMetrics
	locker    Locker
	cfg       config.MatchmakingConfig
	logger    *zap.Logger

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*SearchTask
	// searches a local matcher is locking or committing, by claim count
	claims map[string]int
	// searches matched here, by search ID
	settled map[string]settledSearch

	now func() time.Time
}

func NewMatchmaker(
	searches SearchStore,
	rooms RoomCreator,
	publisher notify.Publisher,
	m metrics.MatchmakingMetrics,
	cfg config.MatchmakingConfig,
	logger *zap.Logger,
) *Matchmaker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Matchmaker{
		searches:  searches,
		rooms:     rooms,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentSearches),
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[string]*SearchTask),
		claims:    make(map[string]int),
		settled:   make(map[string]settledSearch),
		now:       time.Now,
	}
}

// WithLocker makes the janitor take a cluster wide lock before each sweep
func (m *Matchmaker) WithLocker(l Locker) *Matchmaker {
	m.locker = l
	return m
}

// SearchOutcome is the final state of a polling task
type SearchOutcome struct {
	State    model.SearchState `json:"state"`
	RoomCode string            `json:"room_code,omitempty"`
}

// SearchTask is the handle of one background search
type SearchTask struct {
	ID        string
	UserID    string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome SearchOutcome
}

func newSearchTask(ctx context.Context, cancel context.CancelFunc, id, userID string, startedAt time.Time) *SearchTask {
	return &SearchTask{
		ID:        id,
		UserID:    userID,
		StartedAt: startedAt,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		outcome:   SearchOutcome{State: model.SearchStateCreated},
	}
}

// Done is closed once the task reaches a terminal state
func (t *SearchTask) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the current state, terminal once Done is closed
func (t *SearchTask) Outcome() SearchOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *SearchTask) setPolling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.outcome.State.IsTerminal() {
		t.outcome.State = model.SearchStatePolling
	}
}

// finish records the first terminal outcome; later calls are ignored
func (t *SearchTask) finish(state model.SearchState, roomCode string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome.State.IsTerminal() {
		return false
	}
	t.outcome = SearchOutcome{State: state, RoomCode: roomCode}
	close(t.done)
	t.cancel()
	return true
}

func (t *SearchTask) finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome.State.IsTerminal()
}

// StartSearch validates settings, replaces any pending search of userID and
// starts polling in the background
func (m *Matchmaker) StartSearch(ctx context.Context, userID string, settings model.GameSettings) (*SearchTask, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	if errs := ValidateGameSettings(settings); errs.HasErrors() {
		return nil, invalidSettings(errs)
	}
	settings = settings.WithDefaults()

	if !m.sem.TryAcquire(1) {
		m.logger.Warn("Search pool exhausted", zap.String("user_id", userID))
		return nil, apperrors.ErrTooManyRequests
	}

	task, err := m.createSearch(ctx, userID, settings)
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}

	m.metrics.SearchStarted(string(settings.GameMode))
	m.metrics.AddActiveSearches(1)

	m.wg.Add(1)
	go m.run(task)

	return task, nil
}

func (m *Matchmaker) createSearch(ctx context.Context, userID string, settings model.GameSettings) (*SearchTask, error) {
	if _, err := m.searches.DeleteByUser(ctx, userID, true); err != nil {
		m.logger.Error("Failed to clear previous search", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	now := m.now()
	search := &model.SearchRequest{
		UserID:    userID,
		Settings:  settings,
		ExpiresAt: now.Add(m.cfg.SearchTimeout),
	}

	if err := m.searches.Create(ctx, search); err != nil {
		if errors.Is(err, repository.ErrSearchExists) {
			return nil, apperrors.ErrSearchExists
		}
		m.logger.Error("Failed to create search", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	taskCtx, cancel := context.WithCancel(m.ctx)
	task := newSearchTask(taskCtx, cancel, search.ID, userID, now)

	m.mu.Lock()
	var replaced []*SearchTask
	for _, t := range m.tasks {
		if t.UserID == userID {
			replaced = append(replaced, t)
		}
	}
	m.tasks[task.ID] = task
	m.mu.Unlock()

	for _, t := range replaced {
		t.finish(model.SearchStateCancelled, "")
	}

	m.logger.Info("Search started",
		zap.String("search_id", search.ID),
		zap.String("user_id", userID),
		zap.String("game_mode", string(settings.GameMode)),
		zap.String("language", settings.Language),
	)

	return task, nil
}

// CancelSearch deletes the caller's own pending search. A search that is
// already matched, expired, cancelled or not owned yields ErrSearchNotFound.
func (m *Matchmaker) CancelSearch(ctx context.Context, userID, searchID string) error {
	n, err := m.searches.DeleteByID(ctx, searchID, userID, true)
	if err != nil {
		m.logger.Error("Failed to cancel search", zap.String("search_id", searchID), zap.Error(err))
		return apperrors.ErrInternal
	}
	if n == 0 {
		return apperrors.ErrSearchNotFound
	}

	if task := m.lookup(searchID); task != nil {
		task.finish(model.SearchStateCancelled, "")
	}

	m.logger.Info("Search cancelled",
		zap.String("search_id", searchID),
		zap.String("user_id", userID),
	)
	return nil
}

// SearchStatus is a search as seen by its owner
type SearchStatus struct {
	Search   *model.SearchRequest `json:"search"`
	State    model.SearchState    `json:"state"`
	RoomCode string               `json:"room_code,omitempty"`
}

type settledSearch struct {
	search   model.SearchRequest
	roomCode string
	at       time.Time
}

// GetSearch returns the caller's own search. A search matched by this
// process stays readable for a while after its record is deleted; past
// that, or when another process matched it, the room is found through the
// caller's current room.
func (m *Matchmaker) GetSearch(ctx context.Context, userID, searchID string) (*SearchStatus, error) {
	search, err := m.searches.GetByID(ctx, searchID)
	if err != nil {
		if errors.Is(err, repository.ErrSearchNotFound) {
			if settled, ok := m.lookupSettled(searchID); ok && settled.search.UserID == userID {
				return &SearchStatus{
					Search:   &settled.search,
					State:    model.SearchStateMatched,
					RoomCode: settled.roomCode,
				}, nil
			}
			return nil, apperrors.ErrSearchNotFound
		}
		m.logger.Error("Failed to get search", zap.String("search_id", searchID), zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	if search.UserID != userID {
		return nil, apperrors.ErrSearchNotFound
	}

	status := &SearchStatus{Search: search, State: model.SearchStatePolling}
	switch {
	case search.Matched:
		status.State = model.SearchStateMatched
	case search.IsExpired(m.now()):
		status.State = model.SearchStateExpired
	}

	if task := m.lookup(searchID); task != nil {
		outcome := task.Outcome()
		if outcome.State.IsTerminal() || outcome.State == model.SearchStateCreated {
			status.State = outcome.State
			status.RoomCode = outcome.RoomCode
		}
	}

	return status, nil
}

// RunJanitor removes expired un-matched searches every cleanup interval
// until ctx is done
func (m *Matchmaker) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired(ctx)
		}
	}
}

func (m *Matchmaker) sweepExpired(ctx context.Context) {
	m.pruneSettled()

	if m.locker != nil {
		ok, err := m.locker.SetNX(ctx, janitorLockKey, "1", m.cfg.CleanupInterval/2)
		if err != nil {
			m.logger.Warn("Janitor lock unavailable, sweeping anyway", zap.Error(err))
		} else if !ok {
			return
		}
	}

	n, err := m.searches.DeleteExpired(ctx)
	if err != nil {
		m.logger.Error("Failed to delete expired searches", zap.Error(err))
		return
	}
	if n > 0 {
		m.metrics.ExpiredSearchesPurged(n)
		m.logger.Info("Expired searches removed", zap.Int64("count", n))
	}
}

// Shutdown stops every polling task and waits for them to exit
func (m *Matchmaker) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveSearches returns the number of polling tasks in this process
func (m *Matchmaker) ActiveSearches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Matchmaker) lookup(searchID string) *SearchTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[searchID]
}

func (m *Matchmaker) run(task *SearchTask) {
	defer m.wg.Done()
	defer m.sem.Release(1)
	defer func() {
		m.mu.Lock()
		delete(m.tasks, task.ID)
		m.mu.Unlock()

		if r := recover(); r != nil {
			m.logger.Error("Search task panicked", zap.String("search_id", task.ID), zap.Any("panic", r))
			task.finish(model.SearchStateFailed, "")
		}

		outcome := task.Outcome()
		m.metrics.AddActiveSearches(-1)
		m.metrics.SearchFinished(outcomeLabel(outcome.State), m.now().Sub(task.StartedAt))
	}()

	ctx := task.ctx
	task.setPolling()
	maxAttempts := m.cfg.MaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if task.finished() {
			return
		}

		done, err := m.pollOnce(ctx, task, attempt)
		if done {
			return
		}
		if err != nil {
			if errors.Is(err, ErrRaceLost) {
				m.metrics.RaceLost()
				m.logger.Debug("Lock race lost, retrying",
					zap.String("search_id", task.ID),
					zap.Int("attempt", attempt),
				)
			} else if ctx.Err() == nil {
				m.logger.Warn("Poll attempt failed",
					zap.String("search_id", task.ID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
		}

		if attempt == maxAttempts {
			break
		}

		if !sleep(ctx, m.cfg.PollInterval) {
			task.finish(model.SearchStateCancelled, "")
			return
		}
	}

	if ctx.Err() != nil {
		task.finish(model.SearchStateCancelled, "")
		return
	}

	if m.awaitClaim(task) {
		return
	}

	// consumed or still held by a matcher in another process
	if search, err := m.searches.GetByID(ctx, task.ID); errors.Is(err, repository.ErrSearchNotFound) || (err == nil && search.Matched) {
		task.finish(model.SearchStateCancelled, "")
		return
	}

	if task.finish(model.SearchStateExpired, "") {
		m.publishError(task.ID, noMatchMessage)
		m.cleanupOwn(task)
		m.logger.Info("Search timed out",
			zap.String("search_id", task.ID),
			zap.String("user_id", task.UserID),
			zap.Int("attempts", maxAttempts),
		)
	}
}

type matchResult struct {
	room         *model.RoomDetail
	searchIDs    []string
	searches     []model.SearchRequest
	participants []*model.UserProfile
}

// pollOnce runs one candidate query and, when enough peers are found, one
// lock attempt. done is true once the task reached a terminal state.
func (m *Matchmaker) pollOnce(ctx context.Context, task *SearchTask, attempt int) (done bool, err error) {
	start := m.now()
	defer func() {
		m.metrics.AddPollAttemptElapsedTime(m.now().Sub(start))
	}()

	self, err := m.searches.GetByID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSearchNotFound) {
			if m.claimed(task.ID) {
				return false, nil
			}
			if task.finish(model.SearchStateCancelled, "") {
				m.logger.Debug("Search gone, stopping", zap.String("search_id", task.ID))
			}
			return true, nil
		}
		return false, err
	}

	// locked by a matcher that is still building the room; it either
	// deletes the search or releases it
	if self.Matched {
		return false, nil
	}

	if self.IsExpired(m.now()) {
		if task.finish(model.SearchStateExpired, "") {
			m.publishError(task.ID, expiredMessage)
			m.cleanupOwn(task)
		}
		return true, nil
	}

	settings := self.Settings.WithDefaults()
	need := settings.TeamSize - 1
	limit := settings.MaxPlayers - 1
	if limit < need {
		limit = need
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	var (
		ids     []string
		userIDs []string
		records []model.SearchRequest
		held    []string
		found   = -1
	)
	err = m.searches.WithTx(attemptCtx, func(tx repository.SearchTx) error {
		ids, userIDs, records = nil, nil, nil

		candidates, err := tx.FindCandidates(attemptCtx, repository.CandidateQuery{
			ExcludeSearchID: self.ID,
			ExcludeUserID:   self.UserID,
			Settings:        settings,
			Limit:           limit,
		})
		if err != nil {
			return err
		}

		resolved := make([]*model.SearchCandidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Owner != nil {
				resolved = append(resolved, c)
			}
		}

		found = len(resolved)

		if len(resolved) < need {
			return nil
		}
		peers := resolved[:need]

		lockIDs := make([]string, 0, len(peers)+1)
		lockUsers := make([]string, 0, len(peers)+1)
		lockRecords := make([]model.SearchRequest, 0, len(peers)+1)
		lockIDs = append(lockIDs, self.ID)
		lockUsers = append(lockUsers, self.UserID)
		lockRecords = append(lockRecords, *self)
		for _, p := range peers {
			lockIDs = append(lockIDs, p.ID)
			lockUsers = append(lockUsers, p.UserID)
			lockRecords = append(lockRecords, p.SearchRequest)
		}

		m.claim(lockIDs)
		held = lockIDs

		locked, err := tx.TryLockAll(attemptCtx, lockIDs)
		if err != nil {
			return err
		}
		if locked != int64(len(lockIDs)) {
			return ErrRaceLost
		}

		ids, userIDs, records = lockIDs, lockUsers, lockRecords
		return nil
	})
	defer m.release(held)

	if found >= 0 {
		m.publisher.Publish(ctx, notify.SearchChannel(self.ID), notify.EventMatchProgress, &notify.MatchProgressPayload{
			Message:      fmt.Sprintf("Found %d of %d players", min(found, need)+1, settings.TeamSize),
			MatchedCount: found,
		})
	}

	if err != nil {
		return false, err
	}
	if ids == nil {
		return false, nil
	}

	// The searches are committed as matched, so no other matcher can take
	// them while the room is built outside the transaction.
	room, err := m.rooms.CreateMatchRoom(attemptCtx, userIDs, settings)
	if err != nil {
		m.releaseSearches(ids)
		return false, fmt.Errorf("create match room: %w", err)
	}

	match := &matchResult{room: room, searchIDs: ids, searches: records, participants: room.Members}
	m.settle(match)
	m.deleteMatched(ids)
	m.announceMatch(match)

	m.logger.Info("Match found",
		zap.String("search_id", task.ID),
		zap.String("room_code", room.Code),
		zap.Strings("search_ids", ids),
		zap.Int("attempt", attempt),
	)
	return true, nil
}

// announceMatch publishes match-found on every participant's own channel
// and settles the local tasks of those participants
func (m *Matchmaker) announceMatch(match *matchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), publishGracePeriod)
	defer cancel()

	payload := &notify.MatchFoundPayload{
		RoomCode:     match.room.Code,
		Room:         &match.room.Room,
		Participants: match.participants,
	}

	for _, id := range match.searchIDs {
		m.publisher.Publish(ctx, notify.SearchChannel(id), notify.EventMatchFound, payload)
		if task := m.lookup(id); task != nil {
			task.finish(model.SearchStateMatched, match.room.Code)
		}
	}
}

func (m *Matchmaker) settle(match *matchResult) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, search := range match.searches {
		search.Matched = true
		m.settled[search.ID] = settledSearch{search: search, roomCode: match.room.Code, at: now}
	}
}

func (m *Matchmaker) lookupSettled(searchID string) (settledSearch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settled, ok := m.settled[searchID]
	if !ok {
		return settledSearch{}, false
	}
	if m.now().Sub(settled.at) > settledRetention {
		delete(m.settled, searchID)
		return settledSearch{}, false
	}
	return settled, true
}

func (m *Matchmaker) pruneSettled() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, settled := range m.settled {
		if now.Sub(settled.at) > settledRetention {
			delete(m.settled, id)
		}
	}
}

func (m *Matchmaker) claim(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.claims[id]++
	}
}

func (m *Matchmaker) release(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if m.claims[id] <= 1 {
			delete(m.claims, id)
		} else {
			m.claims[id]--
		}
	}
}

func (m *Matchmaker) claimed(searchID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[searchID] > 0
}

// awaitClaim waits while a local matcher holds the task's search and
// reports whether the task settled meanwhile
func (m *Matchmaker) awaitClaim(task *SearchTask) bool {
	deadline := time.NewTimer(publishGracePeriod)
	defer deadline.Stop()

	for m.claimed(task.ID) {
		select {
		case <-task.done:
			return true
		case <-deadline.C:
			return task.finished()
		case <-time.After(m.cfg.PollInterval):
		}
	}
	return task.finished()
}

func (m *Matchmaker) publishError(searchID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishGracePeriod)
	defer cancel()
	m.publisher.Publish(ctx, notify.SearchChannel(searchID), notify.EventMatchError, &notify.MatchErrorPayload{
		Message: message,
	})
}

// cleanupOwn removes the task's own record once it can no longer match
func (m *Matchmaker) cleanupOwn(task *SearchTask) {
	ctx, cancel := context.WithTimeout(context.Background(), publishGracePeriod)
	defer cancel()
	if _, err := m.searches.DeleteByID(ctx, task.ID, task.UserID, true); err != nil {
		m.logger.Warn("Failed to remove finished search", zap.String("search_id", task.ID), zap.Error(err))
	}
}

// releaseSearches makes locked searches matchable again after their room
// could not be built
func (m *Matchmaker) releaseSearches(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishGracePeriod)
	defer cancel()
	n, err := m.searches.ReleaseAll(ctx, ids)
	if err != nil {
		m.logger.Error("Failed to release locked searches", zap.Strings("search_ids", ids), zap.Error(err))
		return
	}
	m.logger.Warn("Match room failed, searches released",
		zap.Strings("search_ids", ids),
		zap.Int64("released", n),
	)
}

// deleteMatched removes searches whose room exists. Rows left behind stay
// matched and are purged by the janitor once they expire.
func (m *Matchmaker) deleteMatched(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishGracePeriod)
	defer cancel()
	if _, err := m.searches.DeleteAll(ctx, ids); err != nil {
		m.logger.Warn("Failed to delete matched searches", zap.Strings("search_ids", ids), zap.Error(err))
	}
}

// sleep waits d or until ctx is done, reporting whether the full interval elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func outcomeLabel(state model.SearchState) string {
	switch state {
	case model.SearchStateMatched:
		return metrics.OutcomeMatched
	case model.SearchStateExpired:
		return metrics.OutcomeExpired
	case model.SearchStateCancelled:
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailed
	}
}
