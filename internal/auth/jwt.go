package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/onemove/marketplace/internal/domain/user"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims carry a full identity snapshot so the middleware can make
// cheap decisions without a DB round trip.
type AccessClaims struct {
	UserID    string   `json:"sub"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Fullname  string   `json:"fullname"`
	Roles     []string `json:"role"`
	TokenType string   `json:"typ"`
	JTI       string   `json:"jti"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the subject id.
type RefreshClaims struct {
	UserID    string `json:"sub"`
	TokenType string `json:"typ"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (m *Manager) GenerateAccessToken(u user.User) (string, error) {
	now := time.Now().UTC()

	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}

	claims := AccessClaims{
		UserID:    u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Fullname:  u.Fullname,
		Roles:     roles,
		TokenType: "access",
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			Subject:   u.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.accessSecret)
}

func (m *Manager) GenerateRefreshToken(userID string) (raw string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(m.refreshTTL)

	claims := RefreshClaims{
		UserID:    userID,
		TokenType: "refresh",
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err = token.SignedString(m.refreshSecret)

	return
}

// VerifyAccessToken checks signature and expiry only; it never consults
// the store.
func (m *Manager) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, keyFunc(m.accessSecret))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)

	if !ok || !token.Valid || claims.TokenType != "access" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefreshToken checks signature and expiry. The rotation check
// against the stored hash lives in the refresh flow, not here.
func (m *Manager) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &RefreshClaims{}, keyFunc(m.refreshSecret))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*RefreshClaims)

	if !ok || !token.Valid || claims.TokenType != "refresh" || claims.JTI == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}
}

// HashRefreshToken produces the deterministic HMAC hash stored on the user
// row. The raw refresh token never touches the database.
func (m *Manager) HashRefreshToken(raw string) string {
	h := hmac.New(sha256.New, m.refreshSecret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
