package utils // token helpers for the client-held session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken is the signed token handed to the client after login. The
// server keeps no session state: validity is computed per request from the
// embedded issued-at timestamp and the revocation ledger.
type SessionToken struct {
	Token    string    // the serialized JWT string
	IssuedAt time.Time // when the session was issued (UTC, second precision)
	Exp      time.Time // UTC expiration time
}

// SessionClaims are the fields the rest of the system consumes once a token
// has been decoded: who the principal is, whether they are the admin, and
// when the session was issued.
type SessionClaims struct {
	UserID   uint64
	IsAdmin  bool
	IssuedAt time.Time
}

var ErrInvalidSession = errors.New("invalid session token")

// NewSessionToken builds and signs an HS256 JWT carrying the principal id
// (sub), the admin flag (adm), issued-at (iat) and expiration (exp).
func NewSessionToken(secret string, userID uint64, isAdmin bool, ttlHours int) (SessionToken, error) {
	now := time.Now().UTC().Truncate(time.Second)
	exp := now.Add(time.Duration(ttlHours) * time.Hour)
	claims := jwt.MapClaims{
		"sub": userID,
		"adm": isAdmin,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, IssuedAt: now, Exp: exp}, nil
}

// ParseSessionToken validates the signature, algorithm and expiry of a raw
// token and extracts the session claims. Any malformed or tampered token is
// reported as ErrInvalidSession without detail.
func ParseSessionToken(secret, raw string) (SessionClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return SessionClaims{}, ErrInvalidSession
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, ErrInvalidSession
	}

	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return SessionClaims{}, ErrInvalidSession
	}
	iat, ok := claims["iat"].(float64)
	if !ok {
		return SessionClaims{}, ErrInvalidSession
	}
	adm, _ := claims["adm"].(bool)

	return SessionClaims{
		UserID:   uint64(sub),
		IsAdmin:  adm,
		IssuedAt: time.Unix(int64(iat), 0).UTC(),
	}, nil
}
