package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/requestcontext"
)

// SessionClaims is the payload of a login bearer token. User is empty when
// the token belongs to the tenant account itself.
type SessionClaims struct {
	Tenant string `json:"tenant"`
	User   string `json:"user,omitempty"`
	Role   string `json:"role"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 session tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

func (s *JWTService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Issue signs a token for the principal and returns it with its expiry.
func (s *JWTService) Issue(p requestcontext.Principal) (string, time.Time, error) {
	if p.Tenant == "" {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "tenant is required")
	}
	if p.Role != requestcontext.RoleTenant && p.Role != requestcontext.RoleProfessional {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	subject := p.Tenant
	if p.User != "" {
		subject = p.Tenant + "/" + p.User
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Tenant: p.Tenant,
		User:   p.User,
		Role:   string(p.Role),
		Admin:  p.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, algorithm, issuer and expiry.
func (s *JWTService) ValidateToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Tenant == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no tenant")
	}
	return claims, nil
}
