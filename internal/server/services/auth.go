// Package services contains server-side business logic. AuthService composes
// the credential hasher, token service and lockout tracker into the signup,
// login, refresh and logout flows. It is the only layer that raises the
// authentication errors defined in package common.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/logging"
	"github.com/dmitrijs2005/docauth/internal/server/auth"
	"github.com/dmitrijs2005/docauth/internal/server/credentials"
	"github.com/dmitrijs2005/docauth/internal/server/metrics"
	"github.com/dmitrijs2005/docauth/internal/server/models"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/identities"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/repomanager"
)

const (
	msgSignupPending = "Registration successful. Please verify your email."
	msgLoggedOut     = "Logged out successfully"
	msgLocked        = "Account locked due to too many failed attempts. Please try again later."
	msgNotVerified   = "Email not verified. Please verify your email before logging in."
	msgSuspended     = "account suspended"

	minPasswordLen = 8
	maxEmailLen    = 254
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) bool
	NeedsUpgrade(stored string) bool
}

type TokenIssuer interface {
	IssueAccess(subject string) (string, int64, error)
	IssueRefresh(subject string) (string, error)
	Validate(kind auth.Kind, token, expectedSubject string) bool
	ExtractSubject(token string) (string, error)
}

type LockoutTracker interface {
	IsLocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) (bool, error)
	RecordSuccess(ctx context.Context, key string) error
}

// SecondFactor decides whether a login with correct credentials must complete
// a second factor before tokens are issued.
type SecondFactor interface {
	Required(identity *models.Identity) bool
}

// NoSecondFactor never asks for a second factor.
type NoSecondFactor struct{}

func (NoSecondFactor) Required(*models.Identity) bool { return false }

// EnrolledSecondFactor asks for a second factor when the identity enabled one.
type EnrolledSecondFactor struct{}

func (EnrolledSecondFactor) Required(identity *models.Identity) bool {
	return identity.TwoFactorEnabled
}

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UserDTO struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

// AuthResponse carries issued tokens. When Requires2FA is set the token
// fields are empty.
type AuthResponse struct {
	AccessToken  string   `json:"accessToken,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	TokenType    string   `json:"tokenType,omitempty"`
	ExpiresIn    int64    `json:"expiresIn,omitempty"`
	User         *UserDTO `json:"user"`
	Message      string   `json:"message,omitempty"`
	Requires2FA  bool     `json:"requires2fa,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AuthService struct {
	repo         identities.Repository
	tx           repomanager.Transactor
	hasher       PasswordHasher
	tokens       TokenIssuer
	tracker      LockoutTracker
	log          logging.Logger
	metrics      *metrics.Metrics
	secondFactor SecondFactor
	now          func() time.Time

	dummyOnce sync.Once
	dummy     string
}

type Option func(*AuthService)

func WithSecondFactor(sf SecondFactor) Option {
	return func(s *AuthService) { s.secondFactor = sf }
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithTransactor runs the signup insert inside tx. Without it the repository
// is used directly.
func WithTransactor(tx repomanager.Transactor) Option {
	return func(s *AuthService) { s.tx = tx }
}

func NewAuthService(repo identities.Repository, hasher PasswordHasher, tokens TokenIssuer,
	tracker LockoutTracker, logger logging.Logger, m *metrics.Metrics, opts ...Option) *AuthService {
	s := &AuthService{
		repo:         repo,
		hasher:       hasher,
		tokens:       tokens,
		tracker:      tracker,
		log:          logger.With("module", "auth_service"),
		metrics:      m,
		secondFactor: NoSecondFactor{},
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.tx == nil {
		s.tx = repomanager.DirectTransactor{Repo: repo}
	}
	return s
}

// Signup registers a new, unverified identity and issues its first token pair.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if err := validateSignup(email, req.Password); err != nil {
		s.metrics.Signup(metrics.SignupValidationError)
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "signup lookup failed", err, metrics.SignupError, s.metrics.Signup)
	}
	if exists {
		s.metrics.Signup(metrics.SignupDuplicate)
		return nil, common.ErrDuplicateIdentity
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, credentials.ErrPasswordTooLong) {
			s.metrics.Signup(metrics.SignupValidationError)
			return nil, fmt.Errorf("%w: password must be at most 72 bytes", common.ErrValidation)
		}
		return nil, s.internal(ctx, "password hashing failed", err, metrics.SignupError, s.metrics.Signup)
	}

	identity := &models.Identity{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Verified:     false,
		Active:       true,
		Role:         models.RoleUser,
		DateJoined:   s.now().UTC(),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, repo identities.Repository) error {
		exists, err := repo.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrorAlreadyExists
		}
		identity, err = repo.Save(ctx, identity)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.metrics.Signup(metrics.SignupDuplicate)
			return nil, common.ErrDuplicateIdentity
		}
		return nil, s.internal(ctx, "signup save failed", err, metrics.SignupError, s.metrics.Signup)
	}

	resp, err := s.issue(identity, msgSignupPending)
	if err != nil {
		return nil, s.internal(ctx, "token issue failed", err, metrics.SignupError, s.metrics.Signup)
	}
	s.metrics.Signup(metrics.SignupSuccess)
	s.log.Info(ctx, "new identity registered", "email", email)
	return resp, nil
}

// Login authenticates email and password. Unknown emails and wrong passwords
// fail identically and both count towards the lockout.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		s.metrics.Login(metrics.LoginInvalid)
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	locked, err := s.tracker.IsLocked(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "lockout check failed", err, metrics.LoginError, s.metrics.Login)
	}
	if locked {
		s.metrics.Login(metrics.LoginLocked)
		s.log.Warn(ctx, "login attempt on locked account", "email", email)
		return nil, fmt.Errorf("%w: %s", common.ErrAccountLocked, msgLocked)
	}

	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, s.internal(ctx, "identity lookup failed", err, metrics.LoginError, s.metrics.Login)
	}
	if identity == nil {
		// Keep the unknown-email path as slow as a real comparison.
		s.hasher.Verify(req.Password, s.dummyHash())
		return nil, s.failLogin(ctx, email)
	}
	if !s.hasher.Verify(req.Password, identity.PasswordHash) {
		return nil, s.failLogin(ctx, email)
	}
	if s.hasher.NeedsUpgrade(identity.PasswordHash) {
		s.log.Info(ctx, "identity still on legacy password scheme", "email", email)
	}

	if !identity.CanAuthenticate(s.now()) {
		s.metrics.Login(metrics.LoginSuspended)
		s.log.Warn(ctx, "login attempt on suspended account", "email", email)
		return nil, fmt.Errorf("%w: %s", common.ErrAccountLocked, msgSuspended)
	}
	if !identity.Verified {
		s.metrics.Login(metrics.LoginNotVerified)
		s.log.Warn(ctx, "login attempt with unverified email", "email", email)
		return nil, fmt.Errorf("%w: %s", common.ErrEmailNotVerified, msgNotVerified)
	}

	if err := s.tracker.RecordSuccess(ctx, email); err != nil {
		return nil, s.internal(ctx, "lockout reset failed", err, metrics.LoginError, s.metrics.Login)
	}

	if s.secondFactor.Required(identity) {
		s.metrics.Login(metrics.LoginSecondFactor)
		return &AuthResponse{User: toUserDTO(identity), Requires2FA: true}, nil
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, identity.ID, now); err != nil {
		return nil, s.internal(ctx, "last login update failed", err, metrics.LoginError, s.metrics.Login)
	}
	identity.LastLogin = &now

	resp, err := s.issue(identity, "")
	if err != nil {
		return nil, s.internal(ctx, "token issue failed", err, metrics.LoginError, s.metrics.Login)
	}
	s.metrics.Login(metrics.LoginSuccess)
	s.log.Info(ctx, "login succeeded", "email", email)
	return resp, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The old token
// stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.metrics.Refresh(metrics.RefreshInvalid)
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrValidation)
	}

	subject, err := s.tokens.ExtractSubject(refreshToken)
	if err != nil {
		s.metrics.Refresh(metrics.RefreshInvalid)
		return nil, common.ErrInvalidToken
	}

	identity, err := s.repo.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Refresh(metrics.RefreshInvalid)
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "identity lookup failed", err, metrics.RefreshError, s.metrics.Refresh)
	}

	if !s.tokens.Validate(auth.KindRefresh, refreshToken, identity.Email) {
		s.metrics.Refresh(metrics.RefreshInvalid)
		return nil, common.ErrInvalidToken
	}

	resp, err := s.issue(identity, "")
	if err != nil {
		return nil, s.internal(ctx, "token issue failed", err, metrics.RefreshError, s.metrics.Refresh)
	}
	s.metrics.Refresh(metrics.RefreshSuccess)
	return resp, nil
}

// Logout acknowledges the request. Tokens are stateless, so the client is
// responsible for discarding them.
func (s *AuthService) Logout(ctx context.Context) *MessageResponse {
	s.log.Debug(ctx, "logout")
	return &MessageResponse{Message: msgLoggedOut}
}

func (s *AuthService) failLogin(ctx context.Context, email string) error {
	locked, err := s.tracker.RecordFailure(ctx, email)
	if err != nil {
		return s.internal(ctx, "lockout update failed", err, metrics.LoginError, s.metrics.Login)
	}
	s.metrics.Login(metrics.LoginInvalid)
	s.log.Warn(ctx, "failed login attempt", "email", email)
	if locked {
		s.metrics.Lockout()
		s.log.Warn(ctx, "account locked due to too many failed attempts", "email", email)
	}
	return common.ErrInvalidCredentials
}

func (s *AuthService) issue(identity *models.Identity, message string) (*AuthResponse, error) {
	access, expiresIn, err := s.tokens.IssueAccess(identity.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(identity.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenType,
		ExpiresIn:    expiresIn,
		User:         toUserDTO(identity),
		Message:      message,
	}, nil
}

func (s *AuthService) internal(ctx context.Context, msg string, err error, result string, count func(string)) error {
	count(result)
	s.log.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}

func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-password-for-timing")
		if err == nil {
			s.dummy = h
		}
	})
	return s.dummy
}

func toUserDTO(u *models.Identity) *UserDTO {
	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		EmailVerified: u.Verified,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignup(email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	if len(email) > maxEmailLen {
		return fmt.Errorf("%w: email is too long", common.ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is invalid", common.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	return nil
}
