package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/repository"
	"github.com/JustSympa/agariki/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type pointApplicationService interface {
	CreatePoint(ctx context.Context, ownerID uuid.UUID, input services.CreatePointInput) (*models.PointOfActivity, error)
	ListMyPoints(ctx context.Context, ownerID uuid.UUID) ([]models.PointOfActivity, error)
	UpdatePoint(ctx context.Context, ownerID uuid.UUID, pointID uuid.UUID, input services.UpdatePointInput) (*models.PointOfActivity, error)
	DeletePoint(ctx context.Context, ownerID uuid.UUID, pointID uuid.UUID) error
	Discover(ctx context.Context, input services.DiscoverPointsInput) ([]models.PointOfActivity, error)
}

type PointHandler struct {
	service pointApplicationService
}

func NewPointHandler(service pointApplicationService) *PointHandler {
	return &PointHandler{service: service}
}

type createPointRequest struct {
	Type          *string  `json:"type" validate:"omitempty,oneof=presence delivery pop pod"`
	Name          string   `json:"name" validate:"required,max=255"`
	Description   *string  `json:"description"`
	Latitude      *float64 `json:"latitude" validate:"required,latitude"`
	Longitude     *float64 `json:"longitude" validate:"required,longitude"`
	FreshCapacity float64  `json:"fresh_capacity" validate:"gte=0,lt=100000000"`
	DryCapacity   float64  `json:"dry_capacity" validate:"gte=0,lt=100000000"`
	IsActive      *bool    `json:"is_active"`
	AddressHint   string   `json:"address_hint" validate:"required"`
}

// Coordinates are deliberately absent: a point never moves.
type updatePointRequest struct {
	Name          *string  `json:"name" validate:"omitempty,max=255"`
	Description   *string  `json:"description"`
	FreshCapacity *float64 `json:"fresh_capacity" validate:"omitempty,gte=0,lt=100000000"`
	DryCapacity   *float64 `json:"dry_capacity" validate:"omitempty,gte=0,lt=100000000"`
	IsActive      *bool    `json:"is_active"`
	AddressHint   *string  `json:"address_hint"`
}

func (h *PointHandler) ListMine(c *fiber.Ctx) error {
	ownerID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	points, err := h.service.ListMyPoints(c.Context(), ownerID)
	if err != nil {
		return mapPointError(c, err)
	}

	return c.JSON(fiber.Map{"points": points})
}

func (h *PointHandler) Create(c *fiber.Ctx) error {
	ownerID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req createPointRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	var kind *models.PointKind
	if req.Type != nil {
		parsed, err := models.ParsePointKind(*req.Type)
		if err != nil {
			return badRequest(c, "type must be one of: presence, delivery")
		}
		kind = &parsed
	}

	point, err := h.service.CreatePoint(c.Context(), ownerID, services.CreatePointInput{
		Kind:          kind,
		Name:          req.Name,
		Description:   req.Description,
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		FreshCapacity: req.FreshCapacity,
		DryCapacity:   req.DryCapacity,
		IsActive:      req.IsActive,
		AddressHint:   req.AddressHint,
	})
	if err != nil {
		return mapPointError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"point": point})
}

func (h *PointHandler) Update(c *fiber.Ctx) error {
	ownerID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	pointID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid point id")
	}

	var req updatePointRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	point, err := h.service.UpdatePoint(c.Context(), ownerID, pointID, services.UpdatePointInput{
		Name:          req.Name,
		Description:   req.Description,
		FreshCapacity: req.FreshCapacity,
		DryCapacity:   req.DryCapacity,
		IsActive:      req.IsActive,
		AddressHint:   req.AddressHint,
	})
	if err != nil {
		return mapPointError(c, err)
	}

	return c.JSON(fiber.Map{"point": point})
}

func (h *PointHandler) Delete(c *fiber.Ctx) error {
	ownerID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	pointID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid point id")
	}

	if err := h.service.DeletePoint(c.Context(), ownerID, pointID); err != nil {
		return mapPointError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Discover serves the map. The bounding box is optional but all four
// corners must be given together.
func (h *PointHandler) Discover(c *fiber.Ctx) error {
	if _, err := parseActorID(c); err != nil {
		return unauthorized(c)
	}

	input := services.DiscoverPointsInput{
		Limit: parsePositiveInt(c.Query("limit"), 0),
	}

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		kind, err := models.ParsePointKind(raw)
		if err != nil {
			return badRequest(c, "type must be one of: presence, delivery")
		}
		input.Kind = &kind
	}

	bounds, err := parseBoundingBox(c)
	if err != nil {
		return badRequest(c, "min_lat, min_lng, max_lat and max_lng must be valid numbers given together")
	}
	input.Bounds = bounds

	if input.MinFreshCapacity, err = parseOptionalNonNegativeFloat(c.Query("min_fresh")); err != nil {
		return badRequest(c, "min_fresh must be a valid non-negative number")
	}
	if input.MinDryCapacity, err = parseOptionalNonNegativeFloat(c.Query("min_dry")); err != nil {
		return badRequest(c, "min_dry must be a valid non-negative number")
	}

	points, err := h.service.Discover(c.Context(), input)
	if err != nil {
		return mapPointError(c, err)
	}

	return c.JSON(fiber.Map{"points": points})
}

func parseBoundingBox(c *fiber.Ctx) (*repository.BoundingBox, error) {
	keys := []string{"min_lat", "min_lng", "max_lat", "max_lng"}
	values := make([]float64, 0, len(keys))
	for _, key := range keys {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errInvalidNumber
		}
		values = append(values, value)
	}

	switch len(values) {
	case 0:
		return nil, nil
	case len(keys):
		return &repository.BoundingBox{
			MinLat: values[0],
			MinLng: values[1],
			MaxLat: values[2],
			MaxLng: values[3],
		}, nil
	default:
		return nil, errInvalidNumber
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseOptionalNonNegativeFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil, errInvalidNumber
	}
	return &value, nil
}

var errInvalidNumber = errors.New("invalid number")

func mapPointError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return badRequest(c, invalidInputMessage(err))
	case errors.Is(err, services.ErrPointNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Point not found"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Register a profile before adding points"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process point request"})
	}
}
