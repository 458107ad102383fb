package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 60 * time.Minute
)

type Claims struct {
	Type Class `json:"typ"`
	jwt.RegisteredClaims
}

type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("tokens: signing secrets are required")
	}
	s := &Signer{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Signer) IssueAccess(subject string) (Issued, error) {
	return s.issue(Access, subject)
}

func (s *Signer) IssueRefresh(subject string) (Issued, error) {
	return s.issue(Refresh, subject)
}

func (s *Signer) issue(class Class, subject string) (Issued, error) {
	if subject == "" {
		return Issued{}, fmt.Errorf("tokens: empty subject")
	}
	secret, ttl := s.params(class)
	now := s.now().UTC()
	exp := now.Add(ttl)

	claims := Claims{
		Type: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, fmt.Errorf("tokens: sign %s: %w", class, err)
	}
	return Issued{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, class and expiry and returns the subject.
func (s *Signer) Verify(token string, class Class) (string, error) {
	secret, _ := s.params(class)

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
		default:
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.Type != class {
		return "", fmt.Errorf("%w: want %s token, got %q", ErrMalformed, class, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return claims.Subject, nil
}

func (s *Signer) params(class Class) ([]byte, time.Duration) {
	if class == Refresh {
		return s.refreshSecret, s.refreshTTL
	}
	return s.accessSecret, s.accessTTL
}
