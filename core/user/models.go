package user

import (
	"github.com/trezcool/kazi/core"
)

type Role string

// Roles
const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN" // instructor
)

var (
	AllRoles = []Role{RoleStudent, RoleAdmin}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleAdmin},
	}
)

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// User is immutable once created.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role)))

	if err := svc.validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}
