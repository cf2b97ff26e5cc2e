package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

var userSelect = "SELECT " + strings.Join(repository.UserColumns, ", ") + " FROM users"

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	user.IsActive = true

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, bio, skills,
		                    experience, hourly_rate, profile_image, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.Bio,
		repository.EncodeSkills(user.Skills),
		user.Experience,
		user.HourlyRate,
		user.ProfileImage,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("email already registered")
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE email = $1", email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()

	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET name = $1, bio = $2, skills = $3, experience = $4, hourly_rate = $5,
		     profile_image = $6, updated_at = $7
		 WHERE id = $8`,
		user.Name,
		user.Bio,
		repository.EncodeSkills(user.Skills),
		user.Experience,
		user.HourlyRate,
		user.ProfileImage,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (s *Store) ListMentors(ctx context.Context, filter repository.MentorFilter) ([]model.User, error) {
	query, args, err := repository.MentorsQuery(filter, sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building mentor query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing mentors: %w", err)
	}
	defer rows.Close()

	mentors := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning mentor row: %w", err)
		}
		mentors = append(mentors, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating mentor rows: %w", err)
	}
	return mentors, nil
}

// scanUser reads one row selected with repository.UserColumns.
func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u      model.User
		role   string
		skills string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&role,
		&u.Bio,
		&skills,
		&u.Experience,
		&u.HourlyRate,
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
	return &u, nil
}
