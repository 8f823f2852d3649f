package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/coffee-scan/internal/auth"
	"github.com/example/coffee-scan/internal/logging"
	"github.com/example/coffee-scan/internal/repository"
)

// UserStore defines the persistence operations needed by the account flows.
type UserStore interface {
	Create(ctx context.Context, user *repository.User) error
	FindByEmail(ctx context.Context, email string) (*repository.User, error)
	FindByID(ctx context.Context, id uint) (*repository.User, error)
}

var (
	// ErrPasswordMismatch rejects registrations whose confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrEmailTaken rejects registrations for an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials rejects logins with an unknown email or wrong
	// password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserUseCase encapsulates registration and login.
type UserUseCase struct {
	users  UserStore
	logger *zap.Logger
}

// NewUserUseCase constructs a new user use case instance.
func NewUserUseCase(users UserStore, logger *zap.Logger) *UserUseCase {
	return &UserUseCase{users: users, logger: logger.Named("user_usecase")}
}

// Register creates an account with a bcrypt password hash.
func (uc *UserUseCase) Register(ctx context.Context, name, email, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}

	if _, err := uc.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return logging.NewOperationError("usecase.hash_password", "", err)
	}

	user := &repository.User{Name: name, Email: email, PasswordHash: hash}
	if err := uc.users.Create(ctx, user); err != nil {
		// Lost the race with a concurrent registration for the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}

	uc.logger.Info("user registered", zap.Uint("user_id", user.ID))
	return nil
}

// Login verifies credentials and returns the matching account.
func (uc *UserUseCase) Login(ctx context.Context, email, password string) (*repository.User, error) {
	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get loads an account by id.
func (uc *UserUseCase) Get(ctx context.Context, id uint) (*repository.User, error) {
	return uc.users.FindByID(ctx, id)
}
