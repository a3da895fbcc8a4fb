package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/platform/logger"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
	"github.com/ocgrimoire/grimoire-api/internal/store"
	"github.com/ocgrimoire/grimoire-api/internal/worker"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Runner executes CPU-heavy jobs off the request goroutine.
// *worker.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, job worker.Job) error
}

// PasswordService hashes and verifies passwords.
type PasswordService interface {
	auth.PasswordHasher
	auth.PasswordVerifier

	// DummyHash returns a hash no password matches, used to equalize the cost
	// of failed logins.
	DummyHash() string
}

// UserService provides account operations.
type UserService interface {
	// Signup registers a new account. Returns a domain validation error for a
	// malformed email or password, or store.ErrEmailExists.
	Signup(ctx context.Context, email, password string) (*domain.User, error)

	// Login checks credentials and issues an access token.
	// Returns ErrInvalidCredentials on any mismatch.
	Login(ctx context.Context, email, password string) (uuid.UUID, string, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore  store.UserStore
	passwords  PasswordService
	jwtService auth.JWTService
	runner     Runner
	logger     *slog.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService.
// It returns an error if any of the required dependencies are nil.
func NewUserService(
	userStore store.UserStore,
	passwords PasswordService,
	jwtService auth.JWTService,
	runner Runner,
	logger *slog.Logger,
) (*UserServiceImpl, error) {
	if userStore == nil {
		return nil, domain.NewValidationError("userStore", "cannot be nil", domain.ErrValidation)
	}
	if passwords == nil {
		return nil, domain.NewValidationError("passwords", "cannot be nil", domain.ErrValidation)
	}
	if jwtService == nil {
		return nil, domain.NewValidationError("jwtService", "cannot be nil", domain.ErrValidation)
	}
	if runner == nil {
		return nil, domain.NewValidationError("runner", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UserServiceImpl{
		userStore:  userStore,
		passwords:  passwords,
		jwtService: jwtService,
		runner:     runner,
		logger:     logger.With(slog.String("component", "user_service")),
	}, nil
}

// Signup implements UserService.Signup.
func (s *UserServiceImpl) Signup(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	var hash string
	err := s.runner.Do(ctx, func(context.Context) error {
		var hashErr error
		hash, hashErr = s.passwords.Hash(password)
		return hashErr
	})
	if err != nil {
		log.Error("failed to hash password", slog.String("error", redact.Error(err)))
		return nil, newServiceError("user_service", "signup", err)
	}

	user, err := domain.NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("signup with existing email")
			return nil, err
		}
		log.Error("failed to save user",
			slog.String("error", redact.Error(err)))
		return nil, newServiceError("user_service", "signup", err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Login implements UserService.Login. An unknown email still costs one bcrypt
// comparison so response timing does not reveal which accounts exist.
func (s *UserServiceImpl) Login(ctx context.Context, email, password string) (uuid.UUID, string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		log.Error("failed to look up user", slog.String("error", redact.Error(err)))
		return uuid.Nil, "", newServiceError("user_service", "login", err)
	}

	hash := s.passwords.DummyHash()
	if user != nil {
		hash = user.HashedPassword
	}

	var compareErr error
	err = s.runner.Do(ctx, func(context.Context) error {
		compareErr = s.passwords.Compare(hash, password)
		return nil
	})
	if err != nil {
		return uuid.Nil, "", newServiceError("user_service", "login", err)
	}

	if compareErr != nil && !errors.Is(compareErr, auth.ErrPasswordMismatch) {
		log.Error("password comparison failed", slog.String("error", redact.Error(compareErr)))
	}
	if user == nil || compareErr != nil {
		log.Debug("login rejected")
		return uuid.Nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		log.Error("failed to generate token",
			slog.String("user_id", user.ID.String()),
			slog.String("error", redact.Error(err)))
		return uuid.Nil, "", newServiceError("user_service", "login", err)
	}

	log.Debug("user logged in", slog.String("user_id", user.ID.String()))
	return user.ID, token, nil
}

// ValidatePassword checks the password length in characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return domain.NewValidationError("password",
			fmt.Sprintf("must be at least %d characters", MinPasswordLength), nil)
	}
	if len(password) > MaxPasswordLength {
		return domain.NewValidationError("password",
			fmt.Sprintf("must be at most %d bytes", MaxPasswordLength), nil)
	}
	return nil
}
