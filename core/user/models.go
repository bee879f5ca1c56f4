package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleTutor, RoleAdmin}

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	OTP          string    `json:"-"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTutor() bool   { return u.Role == RoleTutor }
func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Tutor is the tutor profile attached to a User with the tutor role.
type Tutor struct {
	ID          int         `json:"id"`
	UserID      int         `json:"user_id"`
	DisplayName null.String `json:"display_name"`
	FullName    null.String `json:"full_name"` // derived from the linked User at profile creation
	Name        null.String `json:"name"`
}

// tutorNameResolvers is the resolution order for a tutor's public name.
// The first resolver returning a valid value wins.
var tutorNameResolvers = []func(Tutor) null.String{
	func(t Tutor) null.String { return t.DisplayName },
	func(t Tutor) null.String { return t.FullName },
	func(t Tutor) null.String { return t.Name },
}

// PublicName resolves the name shown to students, or an invalid null.String
// when the profile carries no usable name.
func (t Tutor) PublicName() null.String {
	for _, resolve := range tutorNameResolvers {
		if name := resolve(t); name.Valid && name.String != "" {
			return name
		}
	}
	return null.String{}
}

type NewUser struct {
	Name     string `json:"name"`
	Username string `json:"username" validate:"required,alphanum_"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=student tutor admin"`
}

type UpdateUser struct {
	Name     string `json:"name"`
	Username string `json:"username" validate:"omitempty,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	IsActive *bool  `json:"is_active"`
}
