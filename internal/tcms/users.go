package tcms

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// CreateUser creates an account. An empty password leaves the account
// unable to log in.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, superuser bool) (*types.User, error) {
	u := &types.User{Username: username, Email: email, IsSuperuser: superuser}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	id, err := s.save(types.TableUsers, "", u)
	if err != nil {
		return nil, err
	}
	u.UserID = id
	return u, nil
}

// SetPassword replaces a user's password.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	u, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	_, err = s.save(types.TableUsers, userID, u)
	return err
}

// Authenticate checks a username and password. Unknown users, users without
// a password and wrong passwords all return ErrBadCredentials.
func (s *Service) Authenticate(username, password string) (*types.User, error) {
	u, err := first[types.User](s, types.TableUsers, types.Filter{"username": username})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrBadCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, types.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, types.ErrBadCredentials
	}
	return u, nil
}

// Grant adds permissions to a user.
func (s *Service) Grant(ctx context.Context, userID string, perms ...string) (*types.User, error) {
	u, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		u.Grant(p)
	}
	if _, err := s.save(types.TableUsers, userID, u); err != nil {
		return nil, err
	}
	return u, nil
}

// HasPerm reports whether the user holds perm.
func (s *Service) HasPerm(userID, perm string) (bool, error) {
	u, err := s.GetUser(userID)
	if err != nil {
		return false, err
	}
	return u.HasPerm(perm), nil
}

// GetUser returns a user by ID.
func (s *Service) GetUser(id string) (*types.User, error) {
	return get[types.User](s, types.TableUsers, id)
}

// UserByName finds a user by username, falling back to email.
func (s *Service) UserByName(name string) (*types.User, error) {
	u, err := first[types.User](s, types.TableUsers, types.Filter{"username": name})
	if err == nil || !errors.Is(err, types.ErrNotFound) {
		return u, err
	}
	return first[types.User](s, types.TableUsers, types.Filter{"email": name})
}

// ListUsers returns users matching filter ordered by username.
func (s *Service) ListUsers(filter types.Filter) ([]*types.User, error) {
	return fetch[types.User](s, types.TableUsers, filter)
}
