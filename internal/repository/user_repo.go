package repository

import (
	"context"
	"strings"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, user_type, full_name, email, phone, bio, avatar_url, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, user_type, full_name, email, phone, bio, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		user.ID,
		int16(user.Role),
		user.FullName,
		user.Email,
		user.Phone,
		user.Bio,
		user.AvatarURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

type UpdateUserInput struct {
	FullName  *string
	Phone     *string
	Bio       *string
	AvatarURL *string
}

// UpdatePartial leaves nil fields alone. An empty phone, bio or avatar URL
// clears the column.
func (r *UserRepository) UpdatePartial(ctx context.Context, id uuid.UUID, req UpdateUserInput) (*models.User, error) {
	query := `
		UPDATE users
		SET full_name = COALESCE($1, full_name),
			phone = CASE WHEN $2::text IS NULL THEN phone ELSE NULLIF($2::text, '') END,
			bio = CASE WHEN $3::text IS NULL THEN bio ELSE NULLIF($3::text, '') END,
			avatar_url = CASE WHEN $4::text IS NULL THEN avatar_url ELSE NULLIF($4::text, '') END,
			updated_at = NOW()
		WHERE id = $5
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, req.FullName, req.Phone, req.Bio, req.AvatarURL, id))
}

// Search matches name or email case-insensitively, skipping exclude.
func (r *UserRepository) Search(ctx context.Context, term string, exclude uuid.UUID, limit int) ([]models.User, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id <> $1
		  AND (full_name ILIKE $2 OR email ILIKE $2)
		ORDER BY full_name ASC, id ASC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, exclude, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var roleCode int16
	if err := row.Scan(
		&user.ID,
		&roleCode,
		&user.FullName,
		&user.Email,
		&user.Phone,
		&user.Bio,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	role, err := models.RoleFromCode(roleCode)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
