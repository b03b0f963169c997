package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/pkg/auth"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService handles authentication and account business logic
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *auth.JWTManager
	rdb        *redis.Client
}

func NewAuthService(userRepo *repository.UserRepository, jwtManager *auth.JWTManager, rdb *redis.Client) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		rdb:        rdb,
	}
}

// Register creates a new account and returns a session token
func (s *AuthService) Register(req model.RegisterRequest) (*model.LoginResponse, error) {
	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, model.NewValidationError("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NewStoreUnavailableError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	user := &model.User{
		Name:        req.Name,
		Email:       req.Email,
		Password:    string(hashedPassword),
		PushEnabled: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	return s.issueSession(user)
}

// Login authenticates with email and password
func (s *AuthService) Login(req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewPermissionDeniedError("invalid email or password")
		}
		return nil, model.NewStoreUnavailableError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, model.NewPermissionDeniedError("invalid email or password")
	}

	return s.issueSession(user)
}

// Logout invalidates the token and sets user offline
func (s *AuthService) Logout(userID uuid.UUID, tokenString string) error {
	if err := s.userRepo.UpdateOnlineStatus(userID, false); err != nil {
		return model.NewStoreUnavailableError(err)
	}

	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil
	}
	expiresIn := time.Until(claims.ExpiresAt.Time)
	if expiresIn <= 0 {
		return nil
	}
	return s.rdb.Set(context.Background(), "blacklist:"+tokenString, "revoked", expiresIn).Err()
}

// GetProfile returns the current user's profile
func (s *AuthService) GetProfile(userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("user", userID)
		}
		return nil, model.NewStoreUnavailableError(err)
	}
	resp := user.ToResponse()
	return &resp, nil
}

// SearchUsers searches for users by name or email
func (s *AuthService) SearchUsers(query string, excludeUserID uuid.UUID) ([]model.UserResponse, error) {
	users, err := s.userRepo.SearchUsers(query, excludeUserID, 20)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	result := []model.UserResponse{}
	for _, u := range users {
		result = append(result, u.ToResponse())
	}
	return result, nil
}

// UpdatePreferences updates the user's notification preferences. Only the
// fields present in the request change.
func (s *AuthService) UpdatePreferences(userID uuid.UUID, req model.UpdatePreferencesRequest) (*model.UserResponse, error) {
	updates := map[string]interface{}{}
	if req.PushEnabled != nil {
		updates["push_enabled"] = *req.PushEnabled
	}
	if req.PushTypes != nil {
		updates["push_types"] = req.PushTypes
	}
	if req.DNDEnabled != nil {
		updates["dnd_enabled"] = *req.DNDEnabled
	}
	if req.DNDStart != "" {
		if _, ok := parseClock(req.DNDStart); !ok {
			return nil, model.NewValidationError("dnd_start must be HH:MM")
		}
		updates["dnd_start"] = req.DNDStart
	}
	if req.DNDEnd != "" {
		if _, ok := parseClock(req.DNDEnd); !ok {
			return nil, model.NewValidationError("dnd_end must be HH:MM")
		}
		updates["dnd_end"] = req.DNDEnd
	}

	if len(updates) > 0 {
		if err := s.userRepo.UpdatePreferences(userID, updates); err != nil {
			return nil, model.NewStoreUnavailableError(err)
		}
	}
	return s.GetProfile(userID)
}

// RegisterDevice registers a device token for push notifications
func (s *AuthService) RegisterDevice(userID uuid.UUID, req model.RegisterDeviceRequest) error {
	device := &model.UserDevice{
		UserID:     userID,
		FCMToken:   req.FCMToken,
		DeviceType: req.DeviceType,
	}
	if err := s.userRepo.RegisterDevice(device); err != nil {
		return model.NewStoreUnavailableError(err)
	}
	return nil
}

func (s *AuthService) issueSession(user *model.User) (*model.LoginResponse, error) {
	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return &model.LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}
