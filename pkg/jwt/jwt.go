package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongRoom    = errors.New("token was issued for another room")
	ErrEmptySecret  = errors.New("room token secret is empty")
)

// Role of a participant inside a room.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleGuest
}

// RoomClaims grants the bearer access to a single room with a role.
type RoomClaims struct {
	jwt.RegisteredClaims
	RoomID string `json:"room_id"`
	Role   Role   `json:"role"`
}

// Manager issues and validates room capability tokens signed with HS256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewManager creates a manager. ttl bounds how long a token can be used to join.
func NewManager(secret string, ttl time.Duration, issuer string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for roomID with the given role and returns it with its expiry.
func (m *Manager) Issue(roomID string, role Role) (string, time.Time, error) {
	if roomID == "" || !role.Valid() {
		return "", time.Time{}, ErrInvalidToken
	}

	now := m.now()
	exp := now.Add(m.ttl)
	claims := &RoomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   roomID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		RoomID: roomID,
		Role:   role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate parses tokenString and checks it grants access to roomID.
func (m *Manager) Validate(tokenString, roomID string) (*RoomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	if claims.RoomID != roomID {
		return nil, ErrWrongRoom
	}
	return claims, nil
}
