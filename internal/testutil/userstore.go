package testutil

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dco5/users-service/internal/model"
	"github.com/dco5/users-service/internal/repository"
)

// UserStore is an in-memory stand-in for the users table.
// It enforces the same uniqueness and non-empty rules as the schema and
// returns the repository package's errors.
type UserStore struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int64

	// Err, when set, is returned by every method.
	Err error
	// EmailLookups counts GetUserByEmail calls.
	EmailLookups int
	// SkipEmailIndex hides rows from GetUserByEmail, simulating a
	// concurrent insert that lands between the pre-check and the insert.
	SkipEmailIndex bool
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{nextID: 1}
}

// CreateUser inserts user, assigning ID and CreatedAt.
func (s *UserStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	// VARCHAR lengths count characters, not bytes.
	if user.Username == "" || user.Email == "" ||
		utf8.RuneCountInString(user.Username) > model.MaxUsernameLength ||
		utf8.RuneCountInString(user.Email) > model.MaxEmailLength {
		return repository.ErrConstraintViolation
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrEmailExists
		}
		if existing.Username == user.Username {
			return repository.ErrUsernameExists
		}
	}

	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	s.nextID++

	stored := *user
	s.users = append(s.users, &stored)
	return nil
}

// GetUserByID returns a copy of the user with id.
func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.ID == id {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// GetUserByEmail returns a copy of the user with email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EmailLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.SkipEmailIndex {
		return nil, repository.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ListUsers returns copies of all users in insertion order.
func (s *UserStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// Len reports the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
