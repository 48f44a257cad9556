package jwttoken

import (
	"clinictrack/pkg/platform/middleware/auth"
	"clinictrack/pkg/requestcontext"
)

// ToPrincipal maps validated claims to the request principal.
func ToPrincipal(claims *SessionClaims) requestcontext.Principal {
	return requestcontext.Principal{
		Tenant: claims.Tenant,
		User:   claims.User,
		Role:   requestcontext.Role(claims.Role),
		Admin:  claims.Admin,
	}
}

// JWTServiceAdapter exposes JWTService as the auth middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (requestcontext.Principal, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	return ToPrincipal(claims), nil
}

var _ auth.TokenValidator = (*JWTServiceAdapter)(nil)
