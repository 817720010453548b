package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const pointColumns = `id, user_id, type, name, description, latitude, longitude,
	fresh_capacity, dry_capacity, is_active, address_hint, created_at, updated_at`

type PointRepository struct {
	db DBTX
}

func NewPointRepository(db DBTX) *PointRepository {
	return &PointRepository{db: db}
}

type CreatePointInput struct {
	UserID        uuid.UUID
	Kind          models.PointKind
	Name          string
	Description   *string
	Latitude      float64
	Longitude     float64
	FreshCapacity float64
	DryCapacity   float64
	IsActive      bool
	AddressHint   string
}

func (r *PointRepository) Create(ctx context.Context, input CreatePointInput) (*models.PointOfActivity, error) {
	query := `
		INSERT INTO points_of_activity (
			user_id, type, name, description, latitude, longitude,
			fresh_capacity, dry_capacity, is_active, address_hint
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + pointColumns
	return scanPoint(r.db.QueryRow(ctx, query,
		input.UserID,
		int16(input.Kind),
		input.Name,
		input.Description,
		input.Latitude,
		input.Longitude,
		input.FreshCapacity,
		input.DryCapacity,
		input.IsActive,
		input.AddressHint,
	))
}

func (r *PointRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PointOfActivity, error) {
	query := `SELECT ` + pointColumns + ` FROM points_of_activity WHERE id = $1`
	return scanPoint(r.db.QueryRow(ctx, query, id))
}

func (r *PointRepository) ListForOwner(ctx context.Context, userID uuid.UUID) ([]models.PointOfActivity, error) {
	query := `
		SELECT ` + pointColumns + `
		FROM points_of_activity
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, userID)
}

// UpdatePointInput carries the editable fields. Coordinates are not part of
// it: a point's location is fixed once created.
type UpdatePointInput struct {
	Name          *string
	Description   *string
	FreshCapacity *float64
	DryCapacity   *float64
	IsActive      *bool
	AddressHint   *string
}

func (r *PointRepository) UpdateForOwner(
	ctx context.Context,
	id uuid.UUID,
	ownerID uuid.UUID,
	input UpdatePointInput,
) (*models.PointOfActivity, error) {
	query := `
		UPDATE points_of_activity
		SET name = COALESCE($1, name),
			description = COALESCE($2, description),
			fresh_capacity = COALESCE($3, fresh_capacity),
			dry_capacity = COALESCE($4, dry_capacity),
			is_active = COALESCE($5, is_active),
			address_hint = COALESCE($6, address_hint),
			updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING ` + pointColumns
	return scanPoint(r.db.QueryRow(ctx, query,
		input.Name,
		input.Description,
		input.FreshCapacity,
		input.DryCapacity,
		input.IsActive,
		input.AddressHint,
		id,
		ownerID,
	))
}

// DeleteForOwner reports false when no point with that id belongs to ownerID.
func (r *PointRepository) DeleteForOwner(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM points_of_activity
		WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type BoundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

type PointDiscoveryFilter struct {
	Kind             *models.PointKind
	Bounds           *BoundingBox
	MinFreshCapacity *float64
	MinDryCapacity   *float64
	Limit            int
}

// Discover lists active points for the map.
func (r *PointRepository) Discover(ctx context.Context, filter PointDiscoveryFilter) ([]models.PointOfActivity, error) {
	clauses := []string{"is_active = TRUE"}
	args := make([]any, 0, 8)
	addArg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Kind != nil {
		clauses = append(clauses, "type = "+addArg(int16(*filter.Kind)))
	}
	if filter.Bounds != nil {
		clauses = append(clauses,
			"latitude BETWEEN "+addArg(filter.Bounds.MinLat)+" AND "+addArg(filter.Bounds.MaxLat),
			"longitude BETWEEN "+addArg(filter.Bounds.MinLng)+" AND "+addArg(filter.Bounds.MaxLng),
		)
	}
	if filter.MinFreshCapacity != nil {
		clauses = append(clauses, "fresh_capacity >= "+addArg(*filter.MinFreshCapacity))
	}
	if filter.MinDryCapacity != nil {
		clauses = append(clauses, "dry_capacity >= "+addArg(*filter.MinDryCapacity))
	}

	query := `
		SELECT ` + pointColumns + `
		FROM points_of_activity
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY updated_at DESC, id DESC
		LIMIT ` + addArg(filter.Limit)

	return r.list(ctx, query, args...)
}

func (r *PointRepository) list(ctx context.Context, query string, args ...any) ([]models.PointOfActivity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]models.PointOfActivity, 0)
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func scanPoint(row pgx.Row) (*models.PointOfActivity, error) {
	var point models.PointOfActivity
	var kindCode int16
	if err := row.Scan(
		&point.ID,
		&point.UserID,
		&kindCode,
		&point.Name,
		&point.Description,
		&point.Latitude,
		&point.Longitude,
		&point.FreshCapacity,
		&point.DryCapacity,
		&point.IsActive,
		&point.AddressHint,
		&point.CreatedAt,
		&point.UpdatedAt,
	); err != nil {
		return nil, err
	}
	kind, err := models.PointKindFromCode(kindCode)
	if err != nil {
		return nil, err
	}
	point.Kind = kind
	return &point, nil
}
