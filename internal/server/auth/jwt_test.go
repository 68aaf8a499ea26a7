package auth

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(clock *fakeClock) *TokenService {
	return NewTokenService([]byte("super-secret"), 15*time.Minute, 7*24*time.Hour, WithClock(clock.Now))
}

func TestIssueAccessAndValidate_Success(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)

	tok, expiresIn, err := s.IssueAccess("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(900), expiresIn)
	assert.True(t, s.Validate(KindAccess, tok, "a@x.com"))
}

func TestValidate_ExpiresAfterAccessLifetime(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)

	tok, _, err := s.IssueAccess("a@x.com")
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	assert.True(t, s.Validate(KindAccess, tok, "a@x.com"))

	clock.Advance(2 * time.Minute)
	assert.False(t, s.Validate(KindAccess, tok, "a@x.com"))
}

func TestRefresh_OutlivesAccess(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)

	tok, err := s.IssueRefresh("a@x.com")
	require.NoError(t, err)

	clock.Advance(6 * 24 * time.Hour)
	assert.True(t, s.Validate(KindRefresh, tok, "a@x.com"))

	clock.Advance(2 * 24 * time.Hour)
	assert.False(t, s.Validate(KindRefresh, tok, "a@x.com"))
}

func TestValidate_SubjectMismatch(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})
	tok, _, err := s.IssueAccess("a@x.com")
	require.NoError(t, err)

	assert.False(t, s.Validate(KindAccess, tok, "b@x.com"))
	assert.False(t, s.Validate(KindAccess, tok, ""))
}

func TestValidate_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})
	access, _, err := s.IssueAccess("a@x.com")
	require.NoError(t, err)
	refresh, err := s.IssueRefresh("a@x.com")
	require.NoError(t, err)

	assert.False(t, s.Validate(KindRefresh, access, "a@x.com"))
	assert.False(t, s.Validate(KindAccess, refresh, "a@x.com"))
}

func TestValidate_WrongSecret(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)
	other := NewTokenService([]byte("other-secret"), time.Hour, time.Hour, WithClock(clock.Now))

	tok, _, err := other.IssueAccess("a@x.com")
	require.NoError(t, err)
	assert.False(t, s.Validate(KindAccess, tok, "a@x.com"))
}

func TestValidate_MalformedAndTampered(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})
	tok, _, err := s.IssueAccess("a@x.com")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	for _, bad := range []string{"", "not.a.jwt", "abc", tampered, tok + "x"} {
		assert.False(t, s.Validate(KindAccess, bad, "a@x.com"), bad)
	}
}

func TestValidate_RejectsUnsignedAlg(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		Kind: KindAccess,
	})
	tok, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.False(t, s.Validate(KindAccess, tok, "a@x.com"))
}

func TestIssue_TokensAreDistinct(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})
	a, err := s.IssueRefresh("a@x.com")
	require.NoError(t, err)
	b, err := s.IssueRefresh("a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestIssue_EmptySubject(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})
	_, _, err := s.IssueAccess("")
	assert.Error(t, err)
	_, err = s.IssueRefresh("")
	assert.Error(t, err)
}

func TestExtractSubject(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	s := newTestService(clock)
	tok, err := s.IssueRefresh("a@x.com")
	require.NoError(t, err)

	sub, err := s.ExtractSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sub)

	// Signature is not checked, expiry is not checked.
	clock.Advance(30 * 24 * time.Hour)
	sub, err = s.ExtractSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sub)
}

func TestExtractSubject_Malformed(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeClock{t: time.Now()})

	_, err := s.ExtractSubject("not-a-jwt")
	if !errors.Is(err, common.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	tok, err := noSub.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = s.ExtractSubject(tok)
	assert.ErrorIs(t, err, common.ErrMalformedToken)
}

func TestNewTokenService_Defaults(t *testing.T) {
	t.Parallel()

	s := NewTokenService([]byte("k"), 0, -1)
	assert.Equal(t, DefaultAccessTTL, s.AccessTTL())
	assert.Equal(t, DefaultRefreshTTL, s.RefreshTTL())
}
