package api

import (
	"context"
	"testing"
	"time"

	"slotbook/internal/config"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionVerifier(t *testing.T) {
	v := NewSessionVerifier(config.SessionConfig{JWTSecret: "s3cret", Issuer: "front"})

	token, err := v.Issue("alice", "c1", time.Hour)
	require.NoError(t, err)

	sess, err := v.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.ClientID)
	assert.Equal(t, "c1", sess.CompanyID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
}

func TestSessionVerifier_Rejects(t *testing.T) {
	v := NewSessionVerifier(config.SessionConfig{JWTSecret: "s3cret", Issuer: "front"})

	sign := func(method jwt.SigningMethod, key any, claims sessionClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	valid := func() sessionClaims {
		return sessionClaims{
			CompanyID: "c1",
			StandardClaims: jwt.StandardClaims{
				Subject:   "alice",
				Issuer:    "front",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	noExp := valid()
	noExp.ExpiresAt = 0
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	noCompany := valid()
	noCompany.CompanyID = ""
	noSubject := valid()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: sign(jwt.SigningMethodHS256, []byte("other"), valid())},
		{name: "unsigned", token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{name: "expired", token: sign(jwt.SigningMethodHS256, []byte("s3cret"), expired)},
		{name: "no exp", token: sign(jwt.SigningMethodHS256, []byte("s3cret"), noExp)},
		{name: "other issuer", token: sign(jwt.SigningMethodHS256, []byte("s3cret"), otherIssuer)},
		{name: "no company", token: sign(jwt.SigningMethodHS256, []byte("s3cret"), noCompany)},
		{name: "no subject", token: sign(jwt.SigningMethodHS256, []byte("s3cret"), noSubject)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Resolve(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestSessionVerifier_NoSecret(t *testing.T) {
	v := NewSessionVerifier(config.SessionConfig{})
	_, err := v.Resolve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrInvalidSession)
}
