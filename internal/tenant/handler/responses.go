package handler

import (
	"time"

	"clinictrack/internal/tenant/models"
	"clinictrack/internal/tenant/service"
)

type RegisterTenantResponse struct {
	Tenant      string     `json:"tenant"`
	LicenseKind string     `json:"license_kind"`
	MaxUsers    *int       `json:"max_users"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toRegisterResponse(res *service.RegisterResult) *RegisterTenantResponse {
	return &RegisterTenantResponse{
		Tenant:      res.Tenant.Name,
		LicenseKind: string(res.License.Kind),
		MaxUsers:    res.License.MaxUsers,
		ExpiresAt:   res.License.ExpiresAt,
	}
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Tenant      string    `json:"tenant"`
	User        string    `json:"user,omitempty"`
	Role        string    `json:"role"`
	LicenseKind string    `json:"license_kind,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
}

type UserResponse struct {
	Name      string    `json:"name"`
	RealName  string    `json:"real_name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.ProfessionalUser) UserResponse {
	return UserResponse{Name: u.Name, RealName: u.RealName, CreatedAt: u.CreatedAt}
}

type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Count int            `json:"count"`
}

func toUserListResponse(users []*models.ProfessionalUser) *UserListResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return &UserListResponse{Users: out, Count: len(out)}
}

// UserLimitResponse reports max_users as null when the tenant is unlimited.
type UserLimitResponse struct {
	Unlimited bool `json:"unlimited"`
	MaxUsers  *int `json:"max_users"`
	Current   int  `json:"current"`
	CanAdd    bool `json:"can_add"`
}

func toUserLimitResponse(c *service.Capacity) *UserLimitResponse {
	res := &UserLimitResponse{
		Unlimited: c.Limit.IsUnlimited(),
		Current:   c.Current,
		CanAdd:    c.CanAdd(),
	}
	if n, ok := c.Limit.Max(); ok {
		res.MaxUsers = &n
	}
	return res
}
