package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultDiscoveryLimit = 200
	maxDiscoveryLimit     = 500

	// capacity columns are NUMERIC(10,2)
	maxCapacity = 1e8
)

type pointStore interface {
	Create(ctx context.Context, input repository.CreatePointInput) (*models.PointOfActivity, error)
	ListForOwner(ctx context.Context, userID uuid.UUID) ([]models.PointOfActivity, error)
	UpdateForOwner(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, input repository.UpdatePointInput) (*models.PointOfActivity, error)
	DeleteForOwner(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (bool, error)
	Discover(ctx context.Context, filter repository.PointDiscoveryFilter) ([]models.PointOfActivity, error)
}

type CreatePointInput struct {
	Kind          *models.PointKind
	Name          string
	Description   *string
	Latitude      float64
	Longitude     float64
	FreshCapacity float64
	DryCapacity   float64
	IsActive      *bool
	AddressHint   string
}

type UpdatePointInput struct {
	Name          *string
	Description   *string
	FreshCapacity *float64
	DryCapacity   *float64
	IsActive      *bool
	AddressHint   *string
}

type DiscoverPointsInput struct {
	Kind             *models.PointKind
	Bounds           *repository.BoundingBox
	MinFreshCapacity *float64
	MinDryCapacity   *float64
	Limit            int
}

type PointService struct {
	points pointStore
	users  userReader
}

func NewPointService(points pointStore, users userReader) *PointService {
	return &PointService{points: points, users: users}
}

// CreatePoint defaults the kind from the owner's role when none is given:
// producers advertise presence, consumers delivery.
func (s *PointService) CreatePoint(ctx context.Context, ownerID uuid.UUID, input CreatePointInput) (*models.PointOfActivity, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	addressHint := strings.TrimSpace(input.AddressHint)
	if addressHint == "" {
		return nil, invalid("address_hint", "is required")
	}
	if err := validateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}
	if err := validateCapacity("fresh_capacity", input.FreshCapacity); err != nil {
		return nil, err
	}
	if err := validateCapacity("dry_capacity", input.DryCapacity); err != nil {
		return nil, err
	}

	var kind models.PointKind
	if input.Kind != nil {
		if !input.Kind.Valid() {
			return nil, invalid("type", "must be presence or delivery")
		}
		kind = *input.Kind
	} else {
		owner, err := s.users.GetByID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		kind = owner.Role.DefaultPointKind()
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	point, err := s.points.Create(ctx, repository.CreatePointInput{
		UserID:        ownerID,
		Kind:          kind,
		Name:          name,
		Description:   trimmedOrNil(input.Description),
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		FreshCapacity: input.FreshCapacity,
		DryCapacity:   input.DryCapacity,
		IsActive:      isActive,
		AddressHint:   addressHint,
	})
	if err != nil {
		if hasPgCode(err, foreignKeyViolation) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return point, nil
}

func (s *PointService) ListMyPoints(ctx context.Context, ownerID uuid.UUID) ([]models.PointOfActivity, error) {
	return s.points.ListForOwner(ctx, ownerID)
}

// UpdatePoint never changes coordinates. A point owned by someone else is
// reported as missing.
func (s *PointService) UpdatePoint(
	ctx context.Context,
	ownerID uuid.UUID,
	pointID uuid.UUID,
	input UpdatePointInput,
) (*models.PointOfActivity, error) {
	update := repository.UpdatePointInput{
		Description:   trimmedPtr(input.Description),
		FreshCapacity: input.FreshCapacity,
		DryCapacity:   input.DryCapacity,
		IsActive:      input.IsActive,
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		update.Name = &name
	}
	if input.AddressHint != nil {
		hint := strings.TrimSpace(*input.AddressHint)
		if hint == "" {
			return nil, invalid("address_hint", "must not be empty")
		}
		update.AddressHint = &hint
	}
	if input.FreshCapacity != nil {
		if err := validateCapacity("fresh_capacity", *input.FreshCapacity); err != nil {
			return nil, err
		}
	}
	if input.DryCapacity != nil {
		if err := validateCapacity("dry_capacity", *input.DryCapacity); err != nil {
			return nil, err
		}
	}

	point, err := s.points.UpdateForOwner(ctx, pointID, ownerID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPointNotFound
		}
		return nil, err
	}
	return point, nil
}

func (s *PointService) DeletePoint(ctx context.Context, ownerID uuid.UUID, pointID uuid.UUID) error {
	deleted, err := s.points.DeleteForOwner(ctx, pointID, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPointNotFound
	}
	return nil
}

// Discover returns active points for the map.
func (s *PointService) Discover(ctx context.Context, input DiscoverPointsInput) ([]models.PointOfActivity, error) {
	if input.Kind != nil && !input.Kind.Valid() {
		return nil, invalid("type", "must be presence or delivery")
	}
	if b := input.Bounds; b != nil {
		if err := validateCoordinates(b.MinLat, b.MinLng); err != nil {
			return nil, err
		}
		if err := validateCoordinates(b.MaxLat, b.MaxLng); err != nil {
			return nil, err
		}
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return nil, invalid("bounds", "minimum must not exceed maximum")
		}
	}
	if input.MinFreshCapacity != nil {
		if err := validateCapacity("min_fresh", *input.MinFreshCapacity); err != nil {
			return nil, err
		}
	}
	if input.MinDryCapacity != nil {
		if err := validateCapacity("min_dry", *input.MinDryCapacity); err != nil {
			return nil, err
		}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultDiscoveryLimit
	}
	if limit > maxDiscoveryLimit {
		limit = maxDiscoveryLimit
	}

	return s.points.Discover(ctx, repository.PointDiscoveryFilter{
		Kind:             input.Kind,
		Bounds:           input.Bounds,
		MinFreshCapacity: input.MinFreshCapacity,
		MinDryCapacity:   input.MinDryCapacity,
		Limit:            limit,
	})
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return invalid("latitude", "must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return invalid("longitude", "must be between -180 and 180")
	}
	return nil
}

func validateCapacity(field string, value float64) error {
	if math.IsNaN(value) || value < 0 {
		return invalid(field, "must be zero or greater")
	}
	if value >= maxCapacity {
		return invalid(field, "must be less than 100000000")
	}
	return nil
}
