package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseIdentity(t *testing.T) {
	token := mintToken(t, &identityClaims{
		Name:             "Alice",
		Avatar:           "https://cdn.example/alice.png",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, testSecret)

	identity, err := ParseIdentity(token, testSecret)

	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "Alice", identity.UserName)
	assert.Equal(t, "https://cdn.example/alice.png", identity.UserAvatar)
}

func TestParseIdentityRejectsWrongSecret(t *testing.T) {
	token := mintToken(t, &identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, "other-secret")

	_, err := ParseIdentity(token, testSecret)
	assert.Error(t, err)
}

func TestParseIdentityRejectsMissingSubject(t *testing.T) {
	token := mintToken(t, &identityClaims{Name: "NoSubject"}, testSecret)

	_, err := ParseIdentity(token, testSecret)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestParseIdentityRejectsGarbage(t *testing.T) {
	_, err := ParseIdentity("not-a-token", testSecret)
	assert.Error(t, err)
}

func TestParticipant(t *testing.T) {
	identity := Identity{UserID: "u1", UserName: "Alice", UserAvatar: "a.png"}

	p := identity.Participant("session-1")

	assert.Equal(t, "session-1", p.SessionID)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Alice", p.UserName)
}
