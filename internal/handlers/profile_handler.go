package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type profileApplicationService interface {
	Register(ctx context.Context, id uuid.UUID, input services.RegisterInput) (*models.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetPublicProfile(ctx context.Context, id uuid.UUID) (*models.PublicUser, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input services.UpdateProfileInput) (*models.User, error)
	SearchUsers(ctx context.Context, actorID uuid.UUID, query string) ([]models.PublicUser, error)
}

type ProfileHandler struct {
	service profileApplicationService
}

func NewProfileHandler(service profileApplicationService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type registerProfileRequest struct {
	Role     string  `json:"role" validate:"required,oneof=producer consumer"`
	FullName string  `json:"full_name" validate:"required,max=255"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Bio      *string `json:"bio"`
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// Register stores the profile for the authenticated subject. The email
// defaults to the one carried by the token.
func (h *ProfileHandler) Register(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req registerProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return badRequest(c, "role must be one of: producer, consumer")
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email, _ = c.Locals("email").(string)
	}

	user, err := h.service.Register(c.Context(), userID, services.RegisterInput{
		Role:     role,
		FullName: req.FullName,
		Email:    email,
		Phone:    req.Phone,
		Bio:      req.Bio,
	})
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

func (h *ProfileHandler) GetMe(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	user, err := h.service.GetProfile(c.Context(), userID)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

func (h *ProfileHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	user, err := h.service.UpdateProfile(c.Context(), userID, services.UpdateProfileInput{
		FullName:  req.FullName,
		Phone:     req.Phone,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

func (h *ProfileHandler) GetUser(c *fiber.Ctx) error {
	if _, err := parseActorID(c); err != nil {
		return unauthorized(c)
	}

	userID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}

	user, err := h.service.GetPublicProfile(c.Context(), userID)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

func (h *ProfileHandler) SearchUsers(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	users, err := h.service.SearchUsers(c.Context(), actorID, c.Query("q"))
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"users": users})
}

func mapProfileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return badRequest(c, invalidInputMessage(err))
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Profile already exists"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process profile request"})
	}
}
