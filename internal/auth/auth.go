// Package auth registers and authenticates learners and issues the bearer
// tokens that scope every request to one user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

const (
	defaultTokenTTL  = 24 * time.Hour
	minSecretLen     = 16
	maxPasswordBytes = 72 // bcrypt input limit
	issuer           = "readcoach"
)

// UserStore persists accounts. Create fails with ErrUserExists when the
// username or email is taken; lookups fail with ErrUserNotFound.
type UserStore interface {
	Create(ctx context.Context, u model.User) error
	Update(ctx context.Context, u model.User) error
	ByID(ctx context.Context, id string) (model.User, error)
	ByUsername(ctx context.Context, username string) (model.User, error)
	ByEmail(ctx context.Context, email string) (model.User, error)
}

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service handles registration, login and token verification.
type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger logger.Logger
}

// New creates a Service signing tokens with secret.
func New(users UserStore, secret string, opts ...Option) (*Service, error) {
	if len(secret) < minSecretLen {
		return nil, ErrInvalidSecret
	}
	s := &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("auth")
	}
	return s, nil
}

// Register creates an account. Only the bcrypt hash of password is kept.
func (s *Service) Register(ctx context.Context, username, email, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	if strings.Contains(username, "@") {
		return model.User{}, fmt.Errorf("%w: username must not contain '@'", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.User{}, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return model.User{}, fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	metrics.RecordUserRegistered()
	s.logger.Info(ctx, "user registered", logger.String("user", u.ID), logger.String("username", username))
	return u, nil
}

// Login verifies credentials and records the login time. An identifier
// containing '@' is looked up as an email, anything else as a username.
func (s *Service) Login(ctx context.Context, identifier, password string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	lookup := s.users.ByUsername
	if strings.Contains(identifier, "@") {
		lookup = s.users.ByEmail
	}
	u, err := lookup(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		metrics.RecordLoginFailure()
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.RecordLoginFailure()
		return model.User{}, ErrInvalidCredentials
	}
	now := s.now().UTC()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("record login: %w", err)
	}
	return u, nil
}

// IssueToken signs an access token for u.
func (s *Service) IssueToken(u model.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: u.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses a token and returns its claims.
func (s *Service) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return claims, nil
}

type userKey struct{}

// ContextWithUser returns ctx carrying the authenticated user ID.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user ID, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}
