package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestao/internal/core"
	"gestao/internal/storage/memory"
)

const testSecret = "test-secret-with-enough-length"

func newTestService() *Service {
	return NewService(memory.New(), testSecret, time.Hour)
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	open, err := s.RegistrationOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)

	admin, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.NotEqual(t, "secret1", admin.PasswordHash)

	open, err = s.RegistrationOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)

	_, err = s.Register(ctx, nil, "joao", "secret2")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Register(ctx, &Claims{Admin: false}, "joao", "secret2")
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	user, err := s.Register(ctx, &Claims{Admin: true}, "joao", "secret2")
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)

	_, err = s.Register(ctx, &Claims{Admin: true}, "joao", "secret3")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestRegister_InvalidCredentials(t *testing.T) {
	s := newTestService()
	_, err := s.Register(context.Background(), nil, "ab", "secret1")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = s.Register(context.Background(), nil, "maria", "123")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLoginAndParseToken(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	u, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)

	token, got, err := s.Login(ctx, " maria ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.Equal(t, "maria", claims.Username)
	assert.True(t, claims.Admin)

	_, _, err = s.Login(ctx, "maria", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	_, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)
	token, _, err := s.Login(ctx, "maria", "secret1")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewService(s.users, testSecret, time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(s.users, "another-secret", time.Hour)
		_, err := other.ParseToken(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ParseToken(unsigned)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("missing subject", func(t *testing.T) {
		noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Admin: true}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.ParseToken(noSub)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ParseToken("not.a.token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	admin, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)
	adminClaims := &Claims{Admin: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	user, err := s.Register(ctx, adminClaims, "joao", "secret2")
	require.NoError(t, err)

	users, err := s.ListUsers(ctx, adminClaims)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = s.ListUsers(ctx, &Claims{})
	assert.ErrorIs(t, err, ErrAdminOnly)

	require.NoError(t, s.ResetPassword(ctx, adminClaims, user.ID, "newsecret"))
	_, _, err = s.Login(ctx, "joao", "newsecret")
	assert.NoError(t, err)
	_, _, err = s.Login(ctx, "joao", "secret2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, s.ResetPassword(ctx, adminClaims, admin.ID, "newsecret"), ErrProtectedUser)
	assert.ErrorIs(t, s.ResetPassword(ctx, &Claims{}, user.ID, "newsecret"), ErrAdminOnly)
	assert.ErrorIs(t, s.ResetPassword(ctx, adminClaims, user.ID, "  "), core.ErrInvalidInput)
	assert.ErrorIs(t, s.ResetPassword(ctx, adminClaims, 999, "newsecret"), core.ErrNotFound)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	_, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)
	_, err = s.Register(ctx, &Claims{Admin: true}, "joao", "secret2")
	require.NoError(t, err)
	adminToken, _, err := s.Login(ctx, "maria", "secret1")
	require.NoError(t, err)
	userToken, _, err := s.Login(ctx, "joao", "secret2")
	require.NoError(t, err)

	var seen *Claims
	protected := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	adminOnly := s.Middleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		cookie  string
		want    int
	}{
		{"no token", protected, "", "", http.StatusUnauthorized},
		{"malformed header", protected, "Token abc", "", http.StatusUnauthorized},
		{"bad token", protected, "Bearer abc", "", http.StatusUnauthorized},
		{"valid bearer", protected, "Bearer " + userToken, "", http.StatusNoContent},
		{"valid cookie", protected, "", userToken, http.StatusNoContent},
		{"admin route as user", adminOnly, "Bearer " + userToken, "", http.StatusForbidden},
		{"admin route as admin", adminOnly, "bearer " + adminToken, "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "joao", seen.Username)
}

func TestOptionalMiddleware(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	_, err := s.Register(ctx, nil, "maria", "secret1")
	require.NoError(t, err)
	token, _, err := s.Login(ctx, "maria", "secret1")
	require.NoError(t, err)

	var got *Claims
	h := s.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tt := range []struct {
		name      string
		header    string
		wantClaim bool
	}{
		{"anonymous", "", false},
		{"bad token", "Bearer nope", false},
		{"valid token", "Bearer " + token, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodPost, "/register", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.wantClaim, got != nil)
		})
	}
}
