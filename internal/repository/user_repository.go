package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// User represents a registered account. The scan pipeline only reads the id
// to tag scan records; everything else belongs to the auth flows.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;size:255"`
	Email        string    `gorm:"column:email;uniqueIndex;size:255"`
	PasswordHash string    `gorm:"column:password;size:100"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// UserRepository provides persistence APIs for user accounts.
type UserRepository struct {
	db *gorm.DB
	retrier
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, retrier: newRetrier(logger.Named("user_repository"))}
}

// AutoMigrate ensures the users schema is available.
func (r *UserRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&User{})
}

// Create inserts a new account. A duplicate email surfaces as
// gorm.ErrDuplicatedKey for the caller to map.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	return r.executeWithRetry(ctx, "repository.create_user", "", func() error {
		return r.db.WithContext(ctx).Create(user).Error
	})
}

// FindByEmail retrieves the account registered under email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_email", "", func() error {
		return r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves an account by its primary key.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_id", "", func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
