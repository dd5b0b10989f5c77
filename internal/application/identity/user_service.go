package identity

import (
	"context"
	"errors"

	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UserService mirrors identity provider accounts into the local user table
type UserService struct {
	userRepo identity.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo identity.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// EnsureUser provisions the user on first sight and keeps email and role in
// step with the token claims. Deactivated users are refused.
func (s *UserService) EnsureUser(ctx context.Context, req EnsureUserRequest) (*UserResponse, error) {
	role := identity.Role(req.Role)
	user, err := s.userRepo.FindByID(ctx, req.UserID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		user, err = s.provision(ctx, req, role)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		changed, err := user.Sync(req.Email, role)
		if err != nil {
			return nil, err
		}
		if changed {
			if err := s.userRepo.Save(ctx, user); err != nil {
				return nil, err
			}
			s.logger.Info("User synced from token claims",
				zap.String("user_id", user.ID.String()),
				zap.String("role", user.Role.String()))
		}
	}

	if !user.IsActive {
		return nil, shared.NewAuthorizationError("User account is deactivated")
	}
	response := ToUserResponse(user)
	return &response, nil
}

func (s *UserService) provision(ctx context.Context, req EnsureUserRequest, role identity.Role) (*identity.User, error) {
	user, err := identity.NewUser(req.UserID, req.Email, role)
	if err != nil {
		return nil, err
	}
	user.SetName(req.FirstName, req.LastName)

	err = s.userRepo.Save(ctx, user)
	if errors.Is(err, shared.ErrAlreadyExists) {
		// A concurrent request provisioned the same user first.
		return s.userRepo.FindByID(ctx, req.UserID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("User provisioned",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()))
	return user, nil
}

// GetProfile returns the caller's user record
func (s *UserService) GetProfile(ctx context.Context, actor identity.Actor) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	response := ToUserResponse(user)
	return &response, nil
}

// UpdateProfile changes the caller's name and company details
func (s *UserService) UpdateProfile(ctx context.Context, actor identity.Actor, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	user.SetName(req.FirstName, req.LastName)
	user.SetCompany(req.Company, req.Position)
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	response := ToUserResponse(user)
	return &response, nil
}
