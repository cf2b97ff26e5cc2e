package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

var userSelect = "SELECT " + strings.Join(repository.UserColumns, ", ") + " FROM users"

// CreateUser inserts a new user. ID, CreatedAt and UpdatedAt are set on the
// passed struct. A duplicate email maps to apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, bio, skills,
		                    experience, hourly_rate, profile_image, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.Bio,
		repository.EncodeSkills(user.Skills),
		nullInt(user.Experience),
		nullFloat(user.HourlyRate),
		user.ProfileImage,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("email already registered")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, userSelect+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by exact email. Emails are normalised to lower
// case by the service before they reach the store.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, userSelect+" WHERE email = ?", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile writes the editable profile fields and bumps updated_at.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, bio = ?, skills = ?, experience = ?, hourly_rate = ?,
		     profile_image = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Bio,
		repository.EncodeSkills(user.Skills),
		nullInt(user.Experience),
		nullFloat(user.HourlyRate),
		user.ProfileImage,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// ListMentors returns active mentors matching the filter.
func (db *DB) ListMentors(ctx context.Context, filter repository.MentorFilter) ([]model.User, error) {
	rows, err := repository.MentorsQuery(filter, sq.Question).
		RunWith(db.conn).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing mentors: %w", err)
	}
	defer rows.Close()

	mentors := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning mentor row: %w", err)
		}
		mentors = append(mentors, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating mentor rows: %w", err)
	}
	return mentors, nil
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u          model.User
		role       string
		skills     string
		experience sql.NullInt64
		hourlyRate sql.NullFloat64
	)
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&role,
		&u.Bio,
		&skills,
		&experience,
		&hourlyRate,
		&u.ProfileImage,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	u.Skills = repository.DecodeSkills(skills)
	if experience.Valid {
		v := int(experience.Int64)
		u.Experience = &v
	}
	if hourlyRate.Valid {
		v := hourlyRate.Float64
		u.HourlyRate = &v
	}
	return &u, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
