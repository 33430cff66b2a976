package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "fleetops"

// Claims are the session token claims: Subject is the user id, ID the session id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret []byte, issuer string) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is not configured")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	return &TokenIssuer{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Issue signs a session token for userID with a fresh session id.
func (t *TokenIssuer) Issue(userID int64, ttl time.Duration) (token string, sessionID string, expiresAt time.Time, err error) {
	if userID <= 0 {
		return "", "", time.Time{}, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", "", time.Time{}, fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	now := t.now().UTC()
	sessionID = uuid.NewString()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        sessionID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, sessionID, expiresAt, nil
}

// Parse verifies the signature and claims and returns the identity.
// Every failure is reported as ErrUnauthenticated.
func (t *TokenIssuer) Parse(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || strings.TrimSpace(claims.ID) == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: userID, SessionID: claims.ID}, nil
}

// Authenticator turns a bearer token into an identity backed by an active session.
type Authenticator struct {
	tokens   *TokenIssuer
	sessions SessionStore
}

// NewAuthenticator wires token verification to the session registry.
func NewAuthenticator(tokens *TokenIssuer, sessions SessionStore) (*Authenticator, error) {
	if tokens == nil || sessions == nil {
		return nil, errors.New("token issuer and session store are required")
	}
	return &Authenticator{tokens: tokens, sessions: sessions}, nil
}

// Authenticate validates token and confirms its session is still active.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	id, err := a.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	userID, ok, err := a.sessions.Active(ctx, id.SessionID)
	if err != nil {
		return Identity{}, fmt.Errorf("check session: %w", err)
	}
	if !ok || userID != id.UserID {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
