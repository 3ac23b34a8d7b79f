package auth

import (
	"errors"
	"time"

	"collectvoice/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager issues and verifies service bearer tokens.
//
// Tokens are HS256 against a single shared secret and carry the calling
// service's name and issue time. There is no revocation list; expiry is the
// only invalidation mechanism.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	ttl := cfg.ServiceTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
	}, nil
}

// ServiceClaims is the only supported claims shape for bearer tokens.
type ServiceClaims struct {
	jwt.RegisteredClaims

	ServiceName string `json:"service_name"`
}

// Issue mints a token for serviceName valid from now.
func (m *Manager) Issue(now time.Time, serviceName string) (string, error) {
	if serviceName == "" {
		return "", errors.New("service name is required")
	}

	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		ServiceName: serviceName,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Verify parses and validates a bearer token at the given instant.
func (m *Manager) Verify(tokenString string, now time.Time) (ServiceClaims, error) {
	var claims ServiceClaims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	parser := jwt.NewParser(opts...)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return ServiceClaims{}, err
	}

	if claims.ServiceName == "" {
		return ServiceClaims{}, errors.New("service_name missing")
	}
	return claims, nil
}
