// Package auth manages operator accounts and the bearer tokens that
// authenticate API calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gestao/internal/core"
	"gestao/internal/storage"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrForbidden          = errors.New("forbidden")
	ErrRegistrationClosed = fmt.Errorf("%w: registration is closed", ErrForbidden)
	ErrAdminOnly          = fmt.Errorf("%w: administrator access required", ErrForbidden)
	ErrProtectedUser      = fmt.Errorf("%w: cannot reset an administrator's password", ErrForbidden)
)

const DefaultTokenTTL = 24 * time.Hour

// Claims are carried in every issued token.
type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// Service handles registration, login and user administration.
type Service struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	// guards the first-user check in Register
	registerMu sync.Mutex
}

func NewService(users storage.UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// RegistrationOpen reports whether an anonymous caller may register,
// which is only the case before any user exists.
func (s *Service) RegistrationOpen(ctx context.Context) (bool, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n == 0, nil
}

// Register creates a user. The first user becomes administrator; after that
// only an administrator (actor) may create accounts.
func (s *Service) Register(ctx context.Context, actor *Claims, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("count users: %w", err)
	}
	first := n == 0
	if !first && (actor == nil || !actor.Admin) {
		return core.User{}, ErrRegistrationClosed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      first,
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "username", u.Username, "admin", u.IsAdmin)
	return u, nil
}

// Login checks the password and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, core.User, error) {
	u, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.User{}, ErrInvalidCredentials
		}
		return "", core.User{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Login failed", "username", u.Username)
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := s.issue(u)
	if err != nil {
		return "", core.User{}, err
	}
	return token, u, nil
}

func (s *Service) issue(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		Admin:    u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a token's signature and expiry.
func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.UserID() == 0 {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims, nil
}

// ListUsers returns every account. Administrators only.
func (s *Service) ListUsers(ctx context.Context, actor *Claims) ([]core.User, error) {
	if actor == nil || !actor.Admin {
		return nil, ErrAdminOnly
	}
	return s.users.ListUsers(ctx)
}

// ResetPassword sets a new password for a non-administrator account.
func (s *Service) ResetPassword(ctx context.Context, actor *Claims, userID int64, password string) error {
	if actor == nil || !actor.Admin {
		return ErrAdminOnly
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: new password must not be empty", core.ErrInvalidInput)
	}

	target, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.IsAdmin {
		return ErrProtectedUser
	}
	if err := core.ValidateCredentials(target.Username, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	slog.InfoContext(ctx, "Password reset", "user_id", userID, "by", actor.UserID())
	return nil
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by the middleware, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
