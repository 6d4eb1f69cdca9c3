package models

import (
	"math"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the persisted account row. The two hashes never leave the service.
type User struct {
	ID                 int64
	Username           string
	PasswordHash       string
	Name               *string
	Address            *string
	Comment            *string
	Role               Role
	RefreshTokenHashed *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserSummary is the identity part embedded in auth responses.
type UserSummary struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	UserType Role   `json:"userType"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name,omitempty"`
	Address  *string `json:"address,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	UserType Role    `json:"userType"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{UserID: u.ID, Username: u.Username, UserType: u.Role}
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Address:  u.Address,
		Comment:  u.Comment,
		UserType: u.Role,
	}
}

type CreateUserInput struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
	Address  *string `json:"address,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	UserType *Role   `json:"userType,omitempty"`
}

// UpdateUserInput is a partial update: nil fields are left untouched.
type UpdateUserInput struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Address  *string `json:"address,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	UserType *Role   `json:"userType,omitempty"`
}

// UserUpdate is what the repository applies, after hashing.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	Name         *string
	Address      *string
	Comment      *string
	Role         *Role
}

func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.PasswordHash == nil && u.Name == nil &&
		u.Address == nil && u.Comment == nil && u.Role == nil
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type UserFilter struct {
	Username *string
	Name     *string
	Address  *string
	Comment  *string
	UserType *Role
	SortBy   string
	SortDir  SortDirection
	Page     int
	Limit    int
}

// Window resolves the page and limit defaults into a row limit and offset.
// ok is false when the limit exceeds MaxListLimit or the offset overflows int.
func (f UserFilter) Window() (limit, offset int, ok bool) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	if limit > MaxListLimit || page-1 > math.MaxInt/limit {
		return 0, 0, false
	}
	return limit, (page - 1) * limit, true
}

// UserSortFields are the accepted values of UserFilter.SortBy.
var UserSortFields = []string{"id", "username", "name", "address", "comment", "userType"}

func IsUserSortField(field string) bool {
	for _, f := range UserSortFields {
		if f == field {
			return true
		}
	}
	return false
}
