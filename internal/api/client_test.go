package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemindersDecodesMixedIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reminders":[
			{"id":1,"title":"numeric","remind_at":"2026-09-01T10:00:00Z"},
			{"id":"2","title":"stringy","remind_at":"2026-09-01T11:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	rs, err := c.Reminders(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, int64(1), rs[0].ID)
	assert.Equal(t, int64(2), rs[1].ID)
}

func TestSetTokenReplacesBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"reminders":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.SetToken("fresh")
	_, err := c.Reminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", got)
}

func TestSessionExpiredIsFatalSentinel(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"expired"}`, status)
		}))
		c := New(srv.URL, "tok")
		_, err := c.Reminders(context.Background())
		assert.ErrorIs(t, err, ErrSessionExpired)
		srv.Close()
	}
}

func TestServerErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"db down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.Reminders(context.Background())

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, se.Error(), "db down")
}

func TestNetworkErrorIsTyped(t *testing.T) {
	// Nothing listens here.
	c := New("http://127.0.0.1:1", "tok")
	_, err := c.Reminders(context.Background())

	var ne *NetworkError
	assert.True(t, errors.As(err, &ne))
	assert.NotErrorIs(t, err, ErrSessionExpired)
}

func TestVapidPublicKeyStripsWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/push/public-key", r.URL.Path)
		w.Write([]byte(`{"key":" BNcW...\nabc "}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	key, err := c.VapidPublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BNcW...abc", key)
}

func TestLoginReturnsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"token":"abc","user":{"id":3,"email":"a@b.c"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	s, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.Token)
	assert.Equal(t, int64(3), s.User.ID)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "3",
		"exp":     exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenExpired(t *testing.T) {
	assert.True(t, TokenExpired(signedToken(t, time.Now().Add(-time.Hour))))
	assert.False(t, TokenExpired(signedToken(t, time.Now().Add(time.Hour))))
	// Undecodable or claimless tokens are left for the server to judge.
	assert.False(t, TokenExpired("garbage"))
}
