// Package jwttoken issues and validates the HS256 tokens used by the API:
// operator bearer tokens and portability download tokens.
package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "privata/pkg/domain-errors"
)

const (
	audienceOperator = "privata-operator"
	audienceDownload = "privata-download"
)

// OperatorClaims identify the caller acting on personal data.
type OperatorClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// DownloadClaims grant one-time access to a portability package.
type DownloadClaims struct {
	RequestID string `json:"rid"`
	jwt.RegisteredClaims
}

// Service signs and validates tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a token service.
func New(signingKey, issuer string, opts ...Option) *Service {
	if signingKey == "" {
		panic("jwttoken: signing key required")
	}
	s := &Service{signingKey: []byte(signingKey), issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *Service) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

func (s *Service) parse(token string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return nil
}

// GenerateOperatorToken issues a bearer token for actor.
func (s *Service) GenerateOperatorToken(actor string, roles []string, ttl time.Duration) (string, error) {
	if actor == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor required")
	}
	return s.sign(OperatorClaims{Roles: roles, RegisteredClaims: s.registered(actor, audienceOperator, ttl)})
}

// ValidateOperatorToken returns the actor named by a valid operator token.
func (s *Service) ValidateOperatorToken(token string) (string, error) {
	var claims OperatorClaims
	if err := s.parse(token, &claims, audienceOperator); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	return claims.Subject, nil
}

// GenerateDownloadToken issues a token for a rights request's export package.
func (s *Service) GenerateDownloadToken(requestID, subjectID string, ttl time.Duration) (string, time.Time, error) {
	claims := DownloadClaims{RequestID: requestID, RegisteredClaims: s.registered(subjectID, audienceDownload, ttl)}
	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// ValidateDownloadToken returns the request and subject a download token grants.
func (s *Service) ValidateDownloadToken(token string) (requestID, subjectID string, err error) {
	var claims DownloadClaims
	if err := s.parse(token, &claims, audienceDownload); err != nil {
		return "", "", err
	}
	if claims.RequestID == "" {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("token %s missing request", claims.ID))
	}
	return claims.RequestID, claims.Subject, nil
}
