package service_test

import (
	"context"
	"database/sql"
	"testing"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testJWTKey = []byte("test-signing-key")

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Password Is Hashed, Role Defaults To Customer", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		userRepo.On("GetUserByEmail", ctx, "new@clinic.example").Return(nil, sql.ErrNoRows).Once()
		userRepo.On("CreateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "new@clinic.example" &&
				u.Role == models.RoleCustomer &&
				bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("hunter22")) == nil
		})).Return(nil).Once()

		user, err := userService.Register(ctx, &models.RegisterRequest{
			Email:    "new@clinic.example",
			Password: "hunter22",
			Name:     "Dr. Rivera",
		})

		require.NoError(t, err)
		assert.NotEqual(t, "hunter22", user.Password, "plaintext must never be stored")
		userRepo.AssertExpectations(t)
	})

	t.Run("Failure - Email Already Registered", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		existing := &models.User{ID: uuid.New(), Email: "taken@clinic.example"}
		userRepo.On("GetUserByEmail", ctx, "taken@clinic.example").Return(existing, nil).Once()

		user, err := userService.Register(ctx, &models.RegisterRequest{
			Email:    "taken@clinic.example",
			Password: "hunter22",
			Name:     "Dr. Rivera",
		})

		assert.Nil(t, user)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateEntry, appErr.Code)
		userRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:       uuid.New(),
		Email:    "dr@clinic.example",
		Password: string(hashed),
		Role:     models.RoleVendor,
	}

	t.Run("Success - Token Carries The User's Claims", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		rateLimitRepo.On("CheckLoginRateLimit", ctx, user.Email).Return(true, 4, 0, nil).Once()
		userRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		resp, err := userService.Login(ctx, &models.LoginRequest{Email: user.Email, Password: "hunter22"})

		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Positive(t, resp.ExpiresIn)

		claims := &models.Claims{}
		_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (any, error) {
			return testJWTKey, nil
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, models.RoleVendor, claims.Role)
	})

	t.Run("Failure - Throttled Before Touching The Database", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		rateLimitRepo.On("CheckLoginRateLimit", ctx, user.Email).Return(false, 0, 42, nil).Once()

		resp, err := userService.Login(ctx, &models.LoginRequest{Email: user.Email, Password: "hunter22"})

		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, 42, resp.RetryAfter)
		userRepo.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Wrong Password Reports Remaining Tries", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		rateLimitRepo.On("CheckLoginRateLimit", ctx, user.Email).Return(true, 2, 0, nil).Once()
		userRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		resp, err := userService.Login(ctx, &models.LoginRequest{Email: user.Email, Password: "wrong"})

		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Empty(t, resp.Token)
		assert.Equal(t, 2, resp.RemainingTries)
	})
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Not Found", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		rateLimitRepo := new(mockRateLimitRepo)
		userService := service.NewUserService(userRepo, rateLimitRepo, testJWTKey)

		id := uuid.New()
		userRepo.On("GetUserById", ctx, id).Return(nil, sql.ErrNoRows).Once()

		user, err := userService.GetUserByID(ctx, id)

		assert.Nil(t, user)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}
