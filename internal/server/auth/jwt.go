// Package auth issues and validates the signed bearer tokens handed to
// clients after signup, login and refresh.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Default lifetimes used when the configuration leaves them unset.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims holds the registered claims plus the token kind. Subject carries the
// identity handle (email).
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"typ"`
}

// TokenService mints and checks HS256 tokens. It is stateless: there is no
// revocation list, expiry is the only invalidation.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, accessTTL, refreshTTL time.Duration, opts ...Option) *TokenService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	s := &TokenService{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess returns a signed access token for subject and its lifetime in seconds.
func (s *TokenService) IssueAccess(subject string) (string, int64, error) {
	token, err := s.issue(subject, KindAccess, s.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return token, int64(s.accessTTL / time.Second), nil
}

// IssueRefresh returns a signed refresh token for subject.
func (s *TokenService) IssueRefresh(subject string) (string, error) {
	return s.issue(subject, KindRefresh, s.refreshTTL)
}

func (s *TokenService) issue(subject string, kind Kind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind: kind,
	})

	tokenString, err := token.SignedString(s.signingKey(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return tokenString, nil
}

// signingKey separates the signing context of the two kinds so that a token
// of one kind never carries a valid signature for the other.
func (s *TokenService) signingKey(kind Kind) []byte {
	key := make([]byte, 0, len(s.secret)+len(kind)+1)
	key = append(key, s.secret...)
	key = append(key, ':')
	key = append(key, kind...)
	return key
}

// Validate reports whether token is a well-formed, correctly signed,
// unexpired token of the given kind whose subject equals expectedSubject.
// It never returns an error: every failure is false.
func (s *TokenService) Validate(kind Kind, token, expectedSubject string) bool {
	claims, err := s.parse(kind, token)
	if err != nil {
		return false
	}
	return claims.Kind == kind && claims.Subject != "" && claims.Subject == expectedSubject
}

func (s *TokenService) parse(kind Kind, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ExtractSubject reads the subject without checking the signature. The
// result is only a lookup hint and must be confirmed with Validate.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", common.ErrMalformedToken)
	}
	return claims.Subject, nil
}
