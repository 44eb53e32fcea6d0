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
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomCodeTaken = errors.New("room code already taken")
)

const roomColumns = `id, code, users, settings, admin_id, created_at, updated_at`

type RoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create creates a new room. A duplicate code yields ErrRoomCodeTaken.
func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (code, users, settings, admin_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		room.Code,
		room.Users,
		room.Settings,
		room.AdminID,
	).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrRoomCodeTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

// GetByCode retrieves a room by its share code
func (r *RoomRepository) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE code = $1`

	if err := r.db.GetContext(ctx, &room, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	return &room, nil
}

// array containment so the GIN index on users applies
const findRoomByMemberQuery = `SELECT ` + roomColumns + ` FROM rooms WHERE users @> ARRAY[$1]::text[] ORDER BY updated_at DESC LIMIT 1`

// FindByMember retrieves the room userID currently belongs to
func (r *RoomRepository) FindByMember(ctx context.Context, userID string) (*model.Room, error) {
	var room model.Room

	if err := r.db.GetContext(ctx, &room, findRoomByMemberQuery, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room by member: %w", err)
	}

	return &room, nil
}

// Update overwrites members, admin and settings of a room in one statement
func (r *RoomRepository) Update(ctx context.Context, room *model.Room) error {
	query := `
		UPDATE rooms
		SET users = $2, admin_id = $3, settings = $4, updated_at = NOW()
		WHERE code = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		room.Code,
		room.Users,
		room.AdminID,
		room.Settings,
	).Scan(&room.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to update room: %w", err)
	}

	return nil
}

// Delete deletes a room
func (r *RoomRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM rooms WHERE code = $1`

	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}
