// Package services – AuthService
//
// This file implements the identity gate: account registration, password
// login issuing signed HS256 tokens, and token resolution into an Actor. The
// user row is re-read on every resolution so role and status changes apply
// to existing sessions immediately.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/repo"
)

const minPasswordLen = 8

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// AuthService registers users and issues/validates credentials.
type AuthService struct {
	DB       *gorm.DB
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration

	// BcryptCost defaults to bcrypt.DefaultCost; tests lower it.
	BcryptCost int
	Now        func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, secret, issuer string, ttl time.Duration) *AuthService {
	return &AuthService{
		DB:         db,
		Secret:     []byte(secret),
		Issuer:     issuer,
		TokenTTL:   ttl,
		BcryptCost: bcrypt.DefaultCost,
		Now:        time.Now,
	}
}

// Session is the result of a successful login.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      domain.PublicUser `json:"user"`
}

func (s *AuthService) tracer() trace.Tracer { return otel.Tracer("services/AuthService") }

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates an ACTIVE STUDENT account.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "Register")
	defer span.End()
	return s.createUser(ctx, name, email, password, domain.RoleStudent)
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	verr := &ValidationError{}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 120 {
		verr.add("name", "must be 1 to 120 characters")
	}
	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.add("email", "must be a valid email address")
	}
	if len(password) < minPasswordLen {
		verr.add("password", "must be at least 8 characters")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserActive,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) cost() int {
	if s.BcryptCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

// Login checks the password and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := s.tracer().Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != domain.UserActive {
		return nil, ErrAccountInactive
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))

	tok, exp, err := s.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u.Public()}, nil
}

// Issue signs a token for u.
func (s *AuthService) Issue(u *domain.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: u.Role,
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, errors.New("signing token")
	}
	return ss, exp, nil
}

// Resolve validates token and returns the current identity of its subject.
// Unknown users and accounts that are not ACTIVE are unauthorized.
func (s *AuthService) Resolve(ctx context.Context, token string) (Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Actor{}, ErrUnauthorized
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Actor{}, ErrUnauthorized
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Actor{}, ErrUnauthorized
	}
	u, err := repo.GetUser(ctx, s.DB, uint(id))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Actor{}, ErrUnauthorized
		}
		return Actor{}, err
	}
	if u.Status != domain.UserActive {
		return Actor{}, ErrUnauthorized
	}
	return Actor{ID: u.ID, Role: u.Role, Status: u.Status}, nil
}

// Me returns the public identity of actor.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*domain.PublicUser, error) {
	u, err := repo.GetUser(ctx, s.DB, actor.ID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	pub := u.Public()
	return &pub, nil
}

// EnsureAdmin creates an ADMIN account for email when it does not exist yet,
// or promotes the existing account. Used for first-run bootstrap.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	switch {
	case err == nil:
		if u.Role == domain.RoleAdmin {
			return nil
		}
		zerolog.Ctx(ctx).Info().Uint("user_id", u.ID).Msg("promoting bootstrap admin")
		return repo.UpdateUserRole(ctx, s.DB, u.ID, domain.RoleAdmin)
	case errors.Is(err, repo.ErrNotFound):
		_, err := s.createUser(ctx, "Administrator", email, password, domain.RoleAdmin)
		if err == nil {
			zerolog.Ctx(ctx).Info().Str("email", email).Msg("bootstrap admin created")
		}
		return err
	default:
		return err
	}
}
