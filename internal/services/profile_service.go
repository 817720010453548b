package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/JustSympa/agariki/internal/metrics"
	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const searchResultLimit = 10

type userStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePartial(ctx context.Context, id uuid.UUID, req repository.UpdateUserInput) (*models.User, error)
	Search(ctx context.Context, term string, exclude uuid.UUID, limit int) ([]models.User, error)
}

type RegisterInput struct {
	Role     models.Role
	FullName string
	Email    string
	Phone    *string
	Bio      *string
}

type UpdateProfileInput struct {
	FullName  *string
	Phone     *string
	Bio       *string
	AvatarURL *string
}

type ProfileService struct {
	users  userStore
	cache  ProfileCache
	logger *zap.Logger
}

func NewProfileService(users userStore, cache ProfileCache, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{users: users, cache: cache, logger: logger}
}

// Register stores the profile for an identity subject. The id comes from the
// identity provider, never from the request body.
func (s *ProfileService) Register(ctx context.Context, id uuid.UUID, input RegisterInput) (*models.User, error) {
	if id == uuid.Nil {
		return nil, invalid("id", "is required")
	}
	if !input.Role.Valid() {
		return nil, invalid("role", "must be producer or consumer")
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, invalid("full_name", "is required")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "must be a valid email address")
	}

	user := &models.User{
		ID:       id,
		Role:     input.Role,
		FullName: fullName,
		Email:    email,
		Phone:    trimmedOrNil(input.Phone),
		Bio:      trimmedOrNil(input.Bio),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if hasPgCode(err, uniqueViolation) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.store(ctx, user)
	return user, nil
}

// GetProfile reads through the cache. Cache failures fall back to the store.
func (s *ProfileService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.cache != nil {
		user, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			metrics.ProfileCacheLookupsTotal.WithLabelValues("hit").Inc()
			return user, nil
		case errors.Is(err, ErrCacheMiss):
			metrics.ProfileCacheLookupsTotal.WithLabelValues("miss").Inc()
		default:
			metrics.ProfileCacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("profile cache read", zap.Error(err), zap.String("user_id", id.String()))
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.fill(ctx, user)
	return user, nil
}

func (s *ProfileService) GetPublicProfile(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// UpdateProfile applies the patch and replaces the cached copy. If the cache
// rejects the new copy the entry is dropped instead.
func (s *ProfileService) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	var fullName *string
	if input.FullName != nil {
		trimmed := strings.TrimSpace(*input.FullName)
		if trimmed == "" {
			return nil, invalid("full_name", "must not be empty")
		}
		fullName = &trimmed
	}

	user, err := s.users.UpdatePartial(ctx, id, repository.UpdateUserInput{
		FullName:  fullName,
		Phone:     trimmedPtr(input.Phone),
		Bio:       trimmedPtr(input.Bio),
		AvatarURL: trimmedPtr(input.AvatarURL),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			s.logger.Warn("profile cache write", zap.Error(err), zap.String("user_id", id.String()))
			if err := s.cache.Invalidate(ctx, id); err != nil {
				s.logger.Warn("profile cache invalidate", zap.Error(err), zap.String("user_id", id.String()))
			}
		}
	}
	return user, nil
}

// SearchUsers matches name or email and never returns the caller.
func (s *ProfileService) SearchUsers(ctx context.Context, actorID uuid.UUID, query string) ([]models.PublicUser, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return []models.PublicUser{}, nil
	}

	users, err := s.users.Search(ctx, term, actorID, searchResultLimit)
	if err != nil {
		return nil, err
	}

	results := make([]models.PublicUser, 0, len(users))
	for i := range users {
		results = append(results, users[i].Public())
	}
	return results, nil
}

func (s *ProfileService) store(ctx context.Context, user *models.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, user); err != nil {
		s.logger.Warn("profile cache write", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
}

// fill caches a profile read from the store unless a newer copy got there
// first.
func (s *ProfileService) fill(ctx context.Context, user *models.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Add(ctx, user); err != nil {
		s.logger.Warn("profile cache fill", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
