// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dco5/users-service/internal/metrics"
	"github.com/dco5/users-service/internal/model"
	"github.com/dco5/users-service/internal/repository"
)

// Service errors.
var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrUserNotFound      = errors.New("user not found")
)

// UserRepository is the persistence gateway used by UserService.
// *repository.Repository satisfies it.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// UserCache is an optional read-through cache of users by ID.
// *cache.Cache satisfies it.
type UserCache interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// UserService handles user business logic.
type UserService struct {
	repo    UserRepository
	cache   UserCache
	metrics metrics.Recorder
}

// NewUserService creates a new UserService. userCache may be nil.
func NewUserService(repo UserRepository, userCache UserCache, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		repo:    repo,
		cache:   userCache,
		metrics: recorder,
	}
}

// CreateUser persists a new active user.
//
// The email is looked up first so the common duplicate case never reaches
// the insert. A concurrent writer can still win between the lookup and the
// insert; the store's unique constraints catch that and the failure is
// translated the same way.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	_, err := s.repo.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		s.metrics.IncUserCreateRejected(metrics.RejectDuplicateEmail)
		return nil, ErrDuplicateEmail
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}

	user := model.NewUser(input.Username, input.Email)
	if err := s.repo.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			s.metrics.IncUserCreateRejected(metrics.RejectDuplicateEmail)
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrUsernameExists):
			s.metrics.IncUserCreateRejected(metrics.RejectDuplicateUsername)
			return nil, ErrDuplicateUsername
		case errors.Is(err, repository.ErrConstraintViolation):
			s.metrics.IncUserCreateRejected(metrics.RejectInvalidPayload)
			return nil, ErrInvalidPayload
		default:
			return nil, err
		}
	}

	s.metrics.IncUserCreated()

	if s.cache != nil {
		_ = s.cache.SetUser(ctx, user)
	}

	return user, nil
}

// GetUser returns the user identified by rawID.
// A rawID that is not a positive integer is reported as ErrUserNotFound.
func (s *UserService) GetUser(ctx context.Context, rawID string) (*model.User, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveUserLookupDuration(time.Since(start))
	}()

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrUserNotFound
	}

	if s.cache != nil {
		if user, err := s.cache.GetUser(ctx, id); err == nil {
			s.metrics.IncUserCacheHit()
			return user, nil
		}
		s.metrics.IncUserCacheMiss()
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Users are never updated, so a cached copy stays valid until the
	// table is recreated.
	if s.cache != nil {
		_ = s.cache.SetUser(ctx, user)
	}

	return user, nil
}

// ListUsers returns all users in insertion order.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.repo.ListUsers(ctx)
}
