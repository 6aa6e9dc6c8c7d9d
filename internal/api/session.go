package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidSession = errors.New("invalid session token")

type sessionClaims struct {
	CompanyID string `json:"company_id"`
	jwt.StandardClaims
}

// SessionVerifier resolves HS256 client tokens carrying "sub" (client id) and "company_id".
type SessionVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSessionVerifier(cfg config.SessionConfig) *SessionVerifier {
	return &SessionVerifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

func (v *SessionVerifier) Resolve(_ context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(v.secret) == 0 {
		return nil, ErrInvalidSession
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidSession)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidSession, claims.Issuer)
	}
	if claims.Subject == "" || claims.CompanyID == "" {
		return nil, fmt.Errorf("%w: sub and company_id are required", ErrInvalidSession)
	}

	return &models.Session{
		ClientID:  claims.Subject,
		CompanyID: claims.CompanyID,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}

// Issue signs a client token. Used by tooling and tests; production tokens come from the front end.
func (v *SessionVerifier) Issue(clientID, companyID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := sessionClaims{
		CompanyID: companyID,
		StandardClaims: jwt.StandardClaims{
			Subject:   clientID,
			Issuer:    v.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
