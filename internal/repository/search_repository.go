package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrSearchNotFound = errors.New("search not found")
	ErrSearchExists   = errors.New("active search already exists")
)

// pq error code for unique_violation
const uniqueViolation = "23505"

// CandidateQuery selects searches compatible with one requester
type CandidateQuery struct {
	ExcludeSearchID string
	ExcludeUserID   string
	Settings        model.GameSettings
	Limit           int
}

// SearchTx is the set of search operations available inside a transaction.
// Row locks taken by TryLockAll are held until the transaction ends.
type SearchTx interface {
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.SearchCandidate, error)
	TryLockAll(ctx context.Context, ids []string) (int64, error)
	DeleteAll(ctx context.Context, ids []string) (int64, error)
}

type SearchRepository struct {
	db *sqlx.DB
}

func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Create inserts a new un-matched search. The partial unique index on
// (user_id) WHERE NOT matched rejects a second active search per user.
func (r *SearchRepository) Create(ctx context.Context, search *model.SearchRequest) error {
	query := `
		INSERT INTO match_searches (user_id, settings, matched, expires_at)
		VALUES ($1, $2, FALSE, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		search.UserID,
		search.Settings,
		search.ExpiresAt,
	).Scan(&search.ID, &search.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrSearchExists
		}
		return fmt.Errorf("failed to create search: %w", err)
	}

	search.Matched = false
	return nil
}

// GetByID retrieves a search by ID, expired or not
func (r *SearchRepository) GetByID(ctx context.Context, id string) (*model.SearchRequest, error) {
	var search model.SearchRequest
	query := `SELECT id, user_id, settings, matched, created_at, expires_at FROM match_searches WHERE id = $1`

	if err := r.db.GetContext(ctx, &search, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSearchNotFound
		}
		return nil, fmt.Errorf("failed to get search by id: %w", err)
	}

	return &search, nil
}

// DeleteByUser removes a user's searches
func (r *SearchRepository) DeleteByUser(ctx context.Context, userID string, onlyUnmatched bool) (int64, error) {
	query := `DELETE FROM match_searches WHERE user_id = $1`
	if onlyUnmatched {
		query += ` AND matched = FALSE`
	}

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete searches by user: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByID removes one search owned by ownerID
func (r *SearchRepository) DeleteByID(ctx context.Context, id, ownerID string, onlyUnmatched bool) (int64, error) {
	query := `DELETE FROM match_searches WHERE id = $1 AND user_id = $2`
	if onlyUnmatched {
		query += ` AND matched = FALSE`
	}

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete search: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes searches past their TTL. Matched rows only outlive
// their match when the matcher died between locking and deleting them.
func (r *SearchRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM match_searches WHERE expires_at <= NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired searches: %w", err)
	}
	return result.RowsAffected()
}

// FindCandidates runs the candidate query outside a transaction
func (r *SearchRepository) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.SearchCandidate, error) {
	return (&searchTx{ext: r.db}).FindCandidates(ctx, q)
}

// TryLockAll runs the conditional lock outside a transaction
func (r *SearchRepository) TryLockAll(ctx context.Context, ids []string) (int64, error) {
	return (&searchTx{ext: r.db}).TryLockAll(ctx, ids)
}

// DeleteAll removes the given searches regardless of state
func (r *SearchRepository) DeleteAll(ctx context.Context, ids []string) (int64, error) {
	return (&searchTx{ext: r.db}).DeleteAll(ctx, ids)
}

// ReleaseAll flips matched back to false on searches whose match fell
// through. A search is left matched when its owner has started another
// search since; the janitor removes it once it expires.
func (r *SearchRepository) ReleaseAll(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE match_searches s
		SET matched = FALSE
		WHERE s.id = ANY($1) AND s.matched = TRUE
			AND NOT EXISTS (
				SELECT 1 FROM match_searches o
				WHERE o.user_id = s.user_id AND o.matched = FALSE
			)`

	result, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to release searches: %w", err)
	}
	return result.RowsAffected()
}

// WithTx runs fn inside a transaction, committing when fn returns nil
func (r *SearchRepository) WithTx(ctx context.Context, fn func(tx SearchTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&searchTx{ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type searchTx struct {
	ext sqlx.ExtContext
}

type candidateRow struct {
	model.SearchRequest
	OwnerUsername   sql.NullString `db:"owner_username"`
	OwnerExperience sql.NullString `db:"owner_experience_level"`
	OwnerPlayStatus sql.NullBool   `db:"owner_play_status"`
}

func (t *searchTx) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.SearchCandidate, error) {
	if q.Limit <= 0 {
		return []*model.SearchCandidate{}, nil
	}

	query := `
		SELECT s.id, s.user_id, s.settings, s.matched, s.created_at, s.expires_at,
			u.username AS owner_username,
			u.experience_level AS owner_experience_level,
			u.play_status AS owner_play_status
		FROM match_searches s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.matched = FALSE
			AND s.expires_at > NOW()
			AND s.id <> $1
			AND s.user_id <> $2
			AND s.settings->>'game_mode' = $3
			AND s.settings->>'language' = $4
			AND s.settings->>'difficulty_level' = $5
		ORDER BY s.created_at
		LIMIT $6`

	var rows []candidateRow
	err := sqlx.SelectContext(ctx, t.ext, &rows, query,
		q.ExcludeSearchID,
		q.ExcludeUserID,
		string(q.Settings.GameMode),
		q.Settings.Language,
		string(q.Settings.DifficultyLevel),
		q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidates: %w", err)
	}

	candidates := make([]*model.SearchCandidate, 0, len(rows))
	for i := range rows {
		c := &model.SearchCandidate{SearchRequest: rows[i].SearchRequest}
		if rows[i].OwnerUsername.Valid {
			c.Owner = &model.UserProfile{
				ID:              rows[i].UserID,
				Username:        rows[i].OwnerUsername.String,
				ExperienceLevel: model.ExperienceLevel(rows[i].OwnerExperience.String),
				PlayStatus:      rows[i].OwnerPlayStatus.Bool,
			}
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// TryLockAll flips matched to true on every listed live search in a single
// statement and reports how many rows actually changed.
func (t *searchTx) TryLockAll(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE match_searches
		SET matched = TRUE
		WHERE id = ANY($1) AND matched = FALSE AND expires_at > NOW()`

	result, err := t.ext.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to lock searches: %w", err)
	}
	return result.RowsAffected()
}

func (t *searchTx) DeleteAll(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := t.ext.ExecContext(ctx, `DELETE FROM match_searches WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete searches: %w", err)
	}
	return result.RowsAffected()
}
