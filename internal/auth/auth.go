// Package auth extracts the caller's identity from the token minted by the
// identity provider. The core trusts these claims for presence and queue
// attribution; it performs no authorization of its own.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/unisonmedia/unison-backend/internal/models"
)

var ErrMissingSubject = errors.New("token has no subject claim")

type identityClaims struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

// Identity describes the authenticated user behind a connection.
type Identity struct {
	UserID     string
	UserName   string
	UserAvatar string
}

// ParseIdentity validates the HMAC-signed token and returns the identity it
// carries.
func ParseIdentity(token, secret string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &identityClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}

	claims, ok := parsed.Claims.(*identityClaims)
	if !ok || claims.Subject == "" {
		return Identity{}, ErrMissingSubject
	}

	return Identity{
		UserID:     claims.Subject,
		UserName:   claims.Name,
		UserAvatar: claims.Avatar,
	}, nil
}

// Participant builds the roster entry for this identity under the given
// session id.
func (i Identity) Participant(sessionID string) models.Participant {
	return models.Participant{
		SessionID:  sessionID,
		UserID:     i.UserID,
		UserName:   i.UserName,
		UserAvatar: i.UserAvatar,
	}
}
