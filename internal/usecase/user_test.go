package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/coffee-scan/internal/auth"
	"github.com/example/coffee-scan/internal/repository"
)

type stubUserStore struct {
	users     map[string]*repository.User
	createErr error
	created   []*repository.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: map[string]*repository.User{}}
}

func (s *stubUserStore) Create(ctx context.Context, user *repository.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uint(len(s.users) + 1)
	s.users[user.Email] = user
	s.created = append(s.created, user)
	return nil
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserStore) FindByID(ctx context.Context, id uint) (*repository.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	store := newStubUserStore()
	uc := NewUserUseCase(store, zap.NewNop())

	err := uc.Register(context.Background(), "Ana", "ana@example.com", "espresso42", "espresso42")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 user, got %d", len(store.created))
	}
	user := store.created[0]
	if user.PasswordHash == "espresso42" {
		t.Fatal("password must not be stored in plaintext")
	}
	if !auth.CheckPassword(user.PasswordHash, "espresso42") {
		t.Fatal("stored hash does not verify the original password")
	}
}

func TestRegisterRejectsMismatchedConfirmation(t *testing.T) {
	uc := NewUserUseCase(newStubUserStore(), zap.NewNop())

	err := uc.Register(context.Background(), "Ana", "ana@example.com", "espresso42", "espresso43")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := newStubUserStore()
	uc := NewUserUseCase(store, zap.NewNop())

	if err := uc.Register(context.Background(), "Ana", "ana@example.com", "espresso42", "espresso42"); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := uc.Register(context.Background(), "Ana Again", "ana@example.com", "espresso42", "espresso42")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterMapsDuplicateKeyRace(t *testing.T) {
	store := newStubUserStore()
	store.createErr = gorm.ErrDuplicatedKey
	uc := NewUserUseCase(store, zap.NewNop())

	err := uc.Register(context.Background(), "Ana", "ana@example.com", "espresso42", "espresso42")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	store := newStubUserStore()
	uc := NewUserUseCase(store, zap.NewNop())
	if err := uc.Register(context.Background(), "Ana", "ana@example.com", "espresso42", "espresso42"); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	user, err := uc.Login(context.Background(), "ana@example.com", "espresso42")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if user.Name != "Ana" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := uc.Login(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := uc.Login(context.Background(), "nobody@example.com", "espresso42"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
