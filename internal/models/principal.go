package models

import "github.com/golang-jwt/jwt/v5"

// UserType identifies what a caller may do.
type UserType string

const (
	UserTypeStudent    UserType = "student"
	UserTypeInstructor UserType = "instructor"
	UserTypeAdmin      UserType = "admin"
)

// Valid reports whether the user type is recognised.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeStudent, UserTypeInstructor, UserTypeAdmin:
		return true
	default:
		return false
	}
}

// Principal is the authenticated caller resolved from an identity token.
type Principal struct {
	UserID   string   `json:"user_id"`
	UserType UserType `json:"user_type"`
}

// IsAdmin reports whether the principal has admin rights.
func (p Principal) IsAdmin() bool { return p.UserType == UserTypeAdmin }

// IdentityClaims is the token payload issued by the identity provider.
type IdentityClaims struct {
	UserID   string   `json:"user_id,omitempty"`
	UserType UserType `json:"user_type"`
	jwt.RegisteredClaims
}
