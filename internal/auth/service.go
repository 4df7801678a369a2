// Package auth verifies credentials and manages employee accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"worklog/internal/models"
	"worklog/internal/policy"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("only admins may register users")
	ErrInvalidUser        = errors.New("invalid user")
)

// UserStore persists accounts. GetUserByEmail returns ErrUserNotFound and
// CreateUser returns ErrUserExists on duplicate emp id or e-mail.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// RegisterInput is a new account request.
type RegisterInput struct {
	EmpID    string
	Name     string
	Email    string
	Password string
	Role     string
	Dept     string
}

// Service handles login and registration.
type Service struct {
	users  UserStore
	tokens *Tokens
	logger *slog.Logger
	cost   int
}

// NewService wires a Service.
func NewService(users UserStore, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

// Tokens exposes the codec used to verify sessions.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Login checks the password against the stored hash and issues a token.
// Unknown e-mail and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (string, models.User, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", models.User{}, ErrInvalidCredentials
		}
		return "", models.User{}, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", models.User{}, err
	}
	s.logger.Info("user logged in", slog.String("emp_id", u.EmpID), slog.String("role", string(u.Role)))
	return token, u, nil
}

// Register creates an account on behalf of an admin actor.
func (s *Service) Register(ctx context.Context, actor models.Actor, in RegisterInput) (models.User, error) {
	if !policy.Allowed(actor, policy.RegisterUser, "") {
		return models.User{}, ErrForbidden
	}
	return s.create(ctx, in)
}

// EnsureAdmin seeds an admin account when no users exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (bool, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	in.Role = string(models.RoleAdmin)
	if _, err := s.create(ctx, in); err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", slog.String("emp_id", in.EmpID))
	return true, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput) (models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	u := models.User{
		EmpID: strings.TrimSpace(in.EmpID),
		Name:  strings.TrimSpace(in.Name),
		Email: normalizeEmail(in.Email),
		Role:  role,
		Dept:  strings.TrimSpace(in.Dept),
	}
	switch {
	case u.EmpID == "":
		return models.User{}, fmt.Errorf("%w: employee id is required", ErrInvalidUser)
	case u.Name == "":
		return models.User{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
	case in.Password == "":
		return models.User{}, fmt.Errorf("%w: password is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return models.User{}, fmt.Errorf("%w: invalid e-mail", ErrInvalidUser)
	}
	if u.Dept == "" {
		u.Dept = "General"
	}

	u.PasswordHash, err = hashPassword(in.Password, s.cost)
	if err != nil {
		return models.User{}, err
	}

	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", slog.String("emp_id", created.EmpID), slog.String("role", string(created.Role)))
	return created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	return hashPassword(password, bcrypt.DefaultCost)
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
